package discovery

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/scylladb/go-set/strset"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/metrics"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// HeartbeatConfig identifies the group a heartbeat job watches.
type HeartbeatConfig struct {
	DatabaseName string
	GroupName    string
	Interval     time.Duration
	// DisabledDataSourceNames are excluded from discovery entirely.
	DisabledDataSourceNames []string
}

// HeartbeatJob periodically rediscovers the primary of one group and
// refreshes member state.
type HeartbeatJob struct {
	discoverer  *Discoverer
	dataSources map[string]*datasource.DataSource
	cfg         HeartbeatConfig
	clock       clockwork.Clock
	logger      *zap.Logger
}

func NewHeartbeatJob(discoverer *Discoverer, dataSources map[string]*datasource.DataSource, cfg HeartbeatConfig, clock clockwork.Clock, logger *zap.Logger) *HeartbeatJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HeartbeatJob{
		discoverer:  discoverer,
		dataSources: dataSources,
		cfg:         cfg,
		clock:       clock,
		logger:      logger.Named("heartbeat").With(zap.String("group", cfg.GroupName)),
	}
}

// Execute runs one discovery round over the enabled members.
func (j *HeartbeatJob) Execute(ctx context.Context) map[string]models.StorageNodeStatus {
	start := j.clock.Now()
	defer func() {
		metrics.HeartbeatDuration.Observe(j.clock.Since(start).Seconds())
	}()

	active := j.activeDataSources()
	if name, ok := j.discoverer.FindPrimaryDataSourceName(ctx, active); ok {
		j.discoverer.SetPrimaryDataSource(name)
	} else {
		j.logger.Warn("no primary found, keeping previous", zap.String("primary", j.discoverer.PrimaryDataSource()))
	}
	return j.discoverer.UpdateMemberState(ctx, j.cfg.DatabaseName, active, j.cfg.GroupName)
}

// Run executes a round immediately and then on every interval tick until
// ctx is done.
func (j *HeartbeatJob) Run(ctx context.Context) error {
	ticker := j.clock.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	j.logger.Info("heartbeat started", zap.Duration("interval", j.cfg.Interval))
	for {
		j.Execute(ctx)
		select {
		case <-ticker.Chan():
		case <-ctx.Done():
			j.logger.Info("heartbeat stopped")
			return nil
		}
	}
}

func (j *HeartbeatJob) activeDataSources() map[string]*datasource.DataSource {
	if len(j.cfg.DisabledDataSourceNames) == 0 {
		return j.dataSources
	}
	disabled := strset.New(j.cfg.DisabledDataSourceNames...)
	active := make(map[string]*datasource.DataSource, len(j.dataSources))
	for name, ds := range j.dataSources {
		if !disabled.Has(name) {
			active[name] = ds
		}
	}
	return active
}
