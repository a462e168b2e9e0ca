package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/logging"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/retry"
)

const (
	DefaultConnectionTTLMinutes = 5
	DefaultCleanupInterval      = 1 * time.Minute
	DefaultPoolMaxConns         = 10
	DefaultPoolMinConns         = 1
)

// OpenFunc opens a pool for one data source.
type OpenFunc func(ctx context.Context, cfg models.DataSourceConfig, settings PoolSettings) (PoolConnector, error)

// ConnectionManagerConfig holds configuration for the connection manager
type ConnectionManagerConfig struct {
	TTLMinutes   int
	PoolMaxConns int32
	PoolMinConns int32
	// Clock drives idle-pool expiry; nil means the real clock.
	Clock clockwork.Clock
	// Open overrides the registered dialect opener; nil means registry lookup.
	Open OpenFunc
}

// ConnectionManager keeps one pool per named data source with TTL-based cleanup.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[string]*ManagedConnection // key: data source name
	ttl         time.Duration
	settings    PoolSettings
	open        OpenFunc
	clock       clockwork.Clock
	stopped     bool
	stopChan    chan struct{}
	logger      *zap.Logger
}

// ManagedConnection is a pooled data source and its last access time.
type ManagedConnection struct {
	connector  PoolConnector
	dataSource *DataSource
	lastUsed   time.Time
	mu         sync.Mutex
}

// NewConnectionManager creates a connection manager with the given configuration.
// Starts a background cleanup goroutine that runs until Close() is called.
func NewConnectionManager(cfg ConnectionManagerConfig, logger *zap.Logger) *ConnectionManager {
	if cfg.TTLMinutes <= 0 {
		cfg.TTLMinutes = DefaultConnectionTTLMinutes
	}
	if cfg.PoolMaxConns <= 0 {
		cfg.PoolMaxConns = DefaultPoolMaxConns
	}
	if cfg.PoolMinConns <= 0 {
		cfg.PoolMinConns = DefaultPoolMinConns
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Open == nil {
		cfg.Open = openRegistered
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	manager := &ConnectionManager{
		connections: make(map[string]*ManagedConnection),
		ttl:         time.Duration(cfg.TTLMinutes) * time.Minute,
		settings: PoolSettings{
			MaxConns: cfg.PoolMaxConns,
			MinConns: cfg.PoolMinConns,
			TTLMin:   cfg.TTLMinutes,
		},
		open:     cfg.Open,
		clock:    cfg.Clock,
		stopChan: make(chan struct{}),
		logger:   logger.Named("connections"),
	}

	go manager.cleanupExpiredConnections()
	return manager
}

func openRegistered(ctx context.Context, cfg models.DataSourceConfig, settings PoolSettings) (PoolConnector, error) {
	dbType, err := cfg.DatabaseType()
	if err != nil {
		return nil, err
	}
	reg, err := Lookup(dbType)
	if err != nil {
		return nil, err
	}
	return reg.Open(ctx, cfg, settings)
}

// GetOrCreate returns the pooled data source for cfg.Name, creating it on first use.
// An existing pool that fails its health check is closed and recreated.
func (m *ConnectionManager) GetOrCreate(ctx context.Context, cfg models.DataSourceConfig) (*DataSource, error) {
	key := cfg.Name

	m.mu.RLock()
	managed, exists := m.connections[key]
	m.mu.RUnlock()

	if exists {
		managed.mu.Lock()

		healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		err := retry.Do(healthCtx, retry.DefaultConfig(), func() error {
			return managed.connector.Ping(healthCtx)
		})
		if err != nil {
			m.logger.Warn("connection unhealthy, recreating",
				zap.String("data_source", key),
				zap.String("error", logging.SanitizeError(err)),
			)
			managed.mu.Unlock()
			m.removeConnection(key)
			return m.createNewPool(ctx, cfg)
		}

		managed.lastUsed = m.clock.Now()
		managed.mu.Unlock()
		return managed.dataSource, nil
	}

	return m.createNewPool(ctx, cfg)
}

// createNewPool creates a new connection pool with retry logic.
// Caller must NOT hold any locks (this method acquires write lock).
func (m *ConnectionManager) createNewPool(ctx context.Context, cfg models.DataSourceConfig) (*DataSource, error) {
	key := cfg.Name

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil, fmt.Errorf("connection manager closed")
	}

	// Another goroutine may have created it while we waited for the lock.
	if managed, exists := m.connections[key]; exists && managed != nil {
		managed.mu.Lock()
		defer managed.mu.Unlock()
		managed.lastUsed = m.clock.Now()
		return managed.dataSource, nil
	}

	dbType, err := cfg.DatabaseType()
	if err != nil {
		return nil, err
	}

	connector, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (PoolConnector, error) {
		c, err := m.open(ctx, cfg, m.settings)
		if err != nil {
			return nil, err
		}
		if err := c.Ping(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
		return c, nil
	})
	if err != nil {
		m.logger.Error("failed to create pool after retries",
			zap.String("data_source", key),
			zap.String("error", logging.SanitizeError(err)),
		)
		return nil, fmt.Errorf("failed to create pool for %s after retries: %w", key, err)
	}

	ds := NewDataSource(key, dbType, fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), connector.DB())
	m.connections[key] = &ManagedConnection{
		connector:  connector,
		dataSource: ds,
		lastUsed:   m.clock.Now(),
	}

	m.logger.Info("created new connection pool",
		zap.String("data_source", key),
		zap.Stringer("type", dbType),
		zap.Int("total_pools", len(m.connections)),
	)

	return ds, nil
}

// removeConnection removes a connection from the pool and closes it.
// Caller must NOT hold m.mu lock (this method acquires write lock).
func (m *ConnectionManager) removeConnection(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if managed, exists := m.connections[key]; exists && managed != nil {
		if err := managed.connector.Close(); err != nil {
			m.logger.Warn("failed to close pool", zap.String("data_source", key), zap.String("error", logging.SanitizeError(err)))
		}
		delete(m.connections, key)
		m.logger.Debug("removed connection", zap.String("data_source", key))
	}
}

// cleanupExpiredConnections runs until stopChan is closed.
func (m *ConnectionManager) cleanupExpiredConnections() {
	ticker := m.clock.NewTicker(DefaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			m.performCleanup()
		case <-m.stopChan:
			return
		}
	}
}

// performCleanup removes pools that haven't been used within TTL.
// Lock order is manager lock then connection lock.
func (m *ConnectionManager) performCleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}

	now := m.clock.Now()
	var expiredKeys []string

	for key, managed := range m.connections {
		managed.mu.Lock()
		idleTime := now.Sub(managed.lastUsed)
		managed.mu.Unlock()

		if idleTime > m.ttl {
			expiredKeys = append(expiredKeys, key)
			m.logger.Debug("marking connection for cleanup",
				zap.String("data_source", key),
				zap.Duration("idle_time", idleTime),
				zap.Duration("ttl", m.ttl),
			)
		}
	}

	for _, key := range expiredKeys {
		if managed := m.connections[key]; managed != nil {
			_ = managed.connector.Close()
			delete(m.connections, key)
		}
	}

	if len(expiredKeys) > 0 {
		m.logger.Info("cleaned up expired connections",
			zap.Int("count", len(expiredKeys)),
			zap.Int("remaining", len(m.connections)),
		)
	}
}

// Close closes all pools and stops the cleanup goroutine. Idempotent.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return nil
	}

	m.stopped = true
	close(m.stopChan)

	for key, managed := range m.connections {
		if err := managed.connector.Close(); err != nil {
			m.logger.Warn("failed to close pool", zap.String("data_source", key), zap.String("error", logging.SanitizeError(err)))
		}
	}

	m.connections = make(map[string]*ManagedConnection)
	m.logger.Info("connection manager closed")
	return nil
}

// GetStats returns statistics about the connection manager.
// Safe to call concurrently.
func (m *ConnectionManager) GetStats() ConnectionStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.clock.Now()
	stats := ConnectionStats{
		TotalConnections:  len(m.connections),
		TTLMinutes:        int(m.ttl.Minutes()),
		ConnectionsByType: make(map[models.DatabaseType]int),
	}

	for _, managed := range m.connections {
		stats.ConnectionsByType[managed.connector.GetType()]++

		managed.mu.Lock()
		idleSeconds := int(now.Sub(managed.lastUsed).Seconds())
		managed.mu.Unlock()
		if idleSeconds > stats.OldestIdleSeconds {
			stats.OldestIdleSeconds = idleSeconds
		}
	}

	return stats
}

// ConnectionStats contains statistics about the connection manager state.
type ConnectionStats struct {
	TotalConnections  int                         `json:"total_connections"`
	TTLMinutes        int                         `json:"ttl_minutes"`
	ConnectionsByType map[models.DatabaseType]int `json:"connections_by_type"`
	OldestIdleSeconds int                         `json:"oldest_idle_seconds"`
}
