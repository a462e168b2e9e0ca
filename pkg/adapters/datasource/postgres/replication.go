package postgres

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
	recoveryQuery    = "SELECT pg_is_in_recovery()"
	walReceiverQuery = "SELECT sender_host, sender_port FROM pg_stat_wal_receiver"

	// A standby that has replayed everything it received is caught up, however
	// old its last transaction is.
	replayDelayQuery = "SELECT CASE WHEN pg_last_wal_receive_lsn() = pg_last_wal_replay_lsn() THEN 0 " +
		"ELSE COALESCE(CAST(EXTRACT(EPOCH FROM (now() - pg_last_xact_replay_timestamp())) * 1000 AS BIGINT), 0) END"
	xlogReplayDelayQuery = "SELECT CASE WHEN pg_last_xlog_receive_location() = pg_last_xlog_replay_location() THEN 0 " +
		"ELSE COALESCE(CAST(EXTRACT(EPOCH FROM (now() - pg_last_xact_replay_timestamp())) * 1000 AS BIGINT), 0) END"
)

// ReplicationProbe reads streaming replication state. openGauss shares the
// views but keeps the pre-10 xlog function names.
type ReplicationProbe struct {
	delayQuery string
	logger     *zap.Logger
}

// NewReplicationProbe creates a probe. If logger is nil, a no-op logger is used.
func NewReplicationProbe(logger *zap.Logger) *ReplicationProbe {
	return newReplicationProbe(replayDelayQuery, logger)
}

// NewXlogReplicationProbe creates a probe for servers with xlog location functions.
func NewXlogReplicationProbe(logger *zap.Logger) *ReplicationProbe {
	return newReplicationProbe(xlogReplayDelayQuery, logger)
}

func newReplicationProbe(delayQuery string, logger *zap.Logger) *ReplicationProbe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplicationProbe{delayQuery: delayQuery, logger: logger}
}

// LoadHighlyAvailableStatus reports primary when the server is not in recovery;
// a standby reports its WAL sender as the upstream address.
func (p *ReplicationProbe) LoadHighlyAvailableStatus(ctx context.Context, source datasource.Connector) (models.HighlyAvailableStatus, error) {
	conn, err := source.Conn(ctx)
	if err != nil {
		return models.HighlyAvailableStatus{}, fmt.Errorf("acquire connection for replication status: %w", err)
	}
	defer conn.Close()

	var inRecovery bool
	if _, err := datasource.QueryOne(ctx, conn, "recovery state", recoveryQuery, nil, &inRecovery); err != nil {
		return models.HighlyAvailableStatus{}, err
	}
	if !inRecovery {
		return models.HighlyAvailableStatus{Primary: true}, nil
	}

	var (
		host sql.NullString
		port sql.NullInt64
	)
	found, err := datasource.QueryOne(ctx, conn, "wal receiver", walReceiverQuery, nil, &host, &port)
	if err != nil {
		return models.HighlyAvailableStatus{}, err
	}

	status := models.HighlyAvailableStatus{}
	if found && host.Valid {
		status.PrimaryAddress = net.JoinHostPort(host.String, strconv.FormatInt(port.Int64, 10))
	}
	p.logger.Debug("standby status", zap.String("upstream", status.PrimaryAddress))
	return status, nil
}

// LoadReplicationDelay returns milliseconds since the last replayed
// transaction, 0 on a primary or a caught-up standby.
func (p *ReplicationProbe) LoadReplicationDelay(ctx context.Context, source datasource.Connector) (int64, error) {
	conn, err := source.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection for replication delay: %w", err)
	}
	defer conn.Close()

	var delay int64
	if _, err := datasource.QueryOne(ctx, conn, "replay delay", p.delayQuery, nil, &delay); err != nil {
		return 0, err
	}
	return delay, nil
}

var _ datasource.ReplicationProbe = (*ReplicationProbe)(nil)
