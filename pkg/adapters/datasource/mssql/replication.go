package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

const (
	replicaRoleQuery = `SELECT rs.role_desc, gs.primary_replica
		FROM sys.dm_hadr_availability_replica_states rs
		JOIN sys.dm_hadr_availability_group_states gs ON gs.group_id = rs.group_id
		WHERE rs.is_local = 1`

	secondaryLagQuery = `SELECT CAST(COALESCE(MAX(secondary_lag_seconds), 0) AS BIGINT)
		FROM sys.dm_hadr_database_replica_states WHERE is_local = 1`
)

// ReplicationProbe reads Always On availability group state. A server outside
// any availability group is its own primary.
type ReplicationProbe struct {
	logger *zap.Logger
}

func NewReplicationProbe(logger *zap.Logger) *ReplicationProbe {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplicationProbe{logger: logger}
}

// LoadHighlyAvailableStatus reports the primary replica's server name as the
// upstream address of a secondary.
func (p *ReplicationProbe) LoadHighlyAvailableStatus(ctx context.Context, source datasource.Connector) (models.HighlyAvailableStatus, error) {
	conn, err := source.Conn(ctx)
	if err != nil {
		return models.HighlyAvailableStatus{}, fmt.Errorf("acquire connection for replica role: %w", err)
	}
	defer conn.Close()

	var role, primary sql.NullString
	found, err := datasource.QueryOne(ctx, conn, "replica role", replicaRoleQuery, nil, &role, &primary)
	if err != nil {
		return models.HighlyAvailableStatus{}, err
	}
	if !found || strings.EqualFold(role.String, "PRIMARY") {
		return models.HighlyAvailableStatus{Primary: true}, nil
	}
	p.logger.Debug("secondary replica", zap.String("role", role.String), zap.String("primary", primary.String))
	return models.HighlyAvailableStatus{PrimaryAddress: primary.String}, nil
}

func (p *ReplicationProbe) LoadReplicationDelay(ctx context.Context, source datasource.Connector) (int64, error) {
	conn, err := source.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection for secondary lag: %w", err)
	}
	defer conn.Close()

	var seconds int64
	if _, err := datasource.QueryOne(ctx, conn, "secondary lag", secondaryLagQuery, nil, &seconds); err != nil {
		return 0, err
	}
	return seconds * 1000, nil
}

var _ datasource.ReplicationProbe = (*ReplicationProbe)(nil)
