package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

const (
	slaveStatusQuery = "SHOW SLAVE STATUS"
	// MySQL 8.4 removed SHOW SLAVE STATUS and renamed Master_* columns to Source_*.
	replicaStatusQuery = "SHOW REPLICA STATUS"
)

// ReplicationProbe reads classic asynchronous replication state.
type ReplicationProbe struct {
	logger *zap.Logger
}

func NewReplicationProbe(logger *zap.Logger) *ReplicationProbe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplicationProbe{logger: logger}
}

// LoadHighlyAvailableStatus treats a server without slave status as the primary.
func (p *ReplicationProbe) LoadHighlyAvailableStatus(ctx context.Context, source datasource.Connector) (models.HighlyAvailableStatus, error) {
	status, found, err := p.slaveStatus(ctx, source)
	if err != nil {
		return models.HighlyAvailableStatus{}, err
	}
	if !found {
		return models.HighlyAvailableStatus{Primary: true}, nil
	}

	host, port := statusField(status, "Source_Host", "Master_Host"), statusField(status, "Source_Port", "Master_Port")
	result := models.HighlyAvailableStatus{}
	if host.Valid && host.String != "" {
		result.PrimaryAddress = net.JoinHostPort(host.String, port.String)
	}
	return result, nil
}

// LoadReplicationDelay converts Seconds_Behind_Master to milliseconds. No
// slave status, or a NULL lag, reads as zero.
func (p *ReplicationProbe) LoadReplicationDelay(ctx context.Context, source datasource.Connector) (int64, error) {
	status, found, err := p.slaveStatus(ctx, source)
	if err != nil || !found {
		return 0, err
	}

	behind := statusField(status, "Seconds_Behind_Source", "Seconds_Behind_Master")
	if !behind.Valid || behind.String == "" {
		return 0, nil
	}
	seconds, err := strconv.ParseInt(behind.String, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse seconds behind source %q: %w", behind.String, err)
	}
	return seconds * 1000, nil
}

// slaveStatus returns the first replication status row keyed by column name,
// falling back to SHOW REPLICA STATUS on servers that rejected the old statement.
func (p *ReplicationProbe) slaveStatus(ctx context.Context, source datasource.Connector) (map[string]sql.NullString, bool, error) {
	status, err := p.queryStatus(ctx, source, "slave status", slaveStatusQuery)
	if err != nil {
		p.logger.Debug("SHOW SLAVE STATUS failed, trying SHOW REPLICA STATUS", zap.Error(err))
		status, err = p.queryStatus(ctx, source, "replica status", replicaStatusQuery)
		if err != nil {
			return nil, false, err
		}
	}
	p.logger.Debug("replication status", zap.Bool("replica", status != nil))
	return status, status != nil, nil
}

// queryStatus scans rows generically, since the column set varies across
// server versions.
func (p *ReplicationProbe) queryStatus(ctx context.Context, source datasource.Connector, name, query string) (map[string]sql.NullString, error) {
	var status map[string]sql.NullString
	err := datasource.QueryRows(ctx, source, name, query, nil, func(rows *sql.Rows) error {
		if status != nil {
			return nil
		}
		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		values := make([]sql.NullString, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		status = make(map[string]sql.NullString, len(cols))
		for i, c := range cols {
			status[c] = values[i]
		}
		return nil
	})
	return status, err
}

func statusField(status map[string]sql.NullString, names ...string) sql.NullString {
	for _, n := range names {
		if v, ok := status[n]; ok {
			return v
		}
	}
	return sql.NullString{}
}

var _ datasource.ReplicationProbe = (*ReplicationProbe)(nil)
