package discovery

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/logging"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/metrics"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// Config holds the lag threshold. A replica is enabled while its measured
// delay is at or below DelayMillisecondsThreshold.
type Config struct {
	DelayMillisecondsThreshold int64
}

// Discoverer finds the primary of one replication group and classifies the
// other members by replication lag. It is dialect-agnostic; the probe issues
// the dialect's queries.
type Discoverer struct {
	probe     datasource.ReplicationProbe
	threshold int64
	sink      EventSink
	clock     clockwork.Clock
	logger    *zap.Logger

	mu      sync.RWMutex
	primary string
}

// NewDiscoverer creates a discoverer. A nil sink logs notifications; a nil
// clock means the real clock.
func NewDiscoverer(probe datasource.ReplicationProbe, cfg Config, sink EventSink, clock clockwork.Clock, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("discovery")
	if sink == nil {
		sink = NewLogSink(logger)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Discoverer{
		probe:     probe,
		threshold: cfg.DelayMillisecondsThreshold,
		sink:      sink,
		clock:     clock,
		logger:    logger,
	}
}

// LoadStatus reports whether source is a primary and, for a replica, the
// address it replicates from.
func (d *Discoverer) LoadStatus(ctx context.Context, source datasource.Connector) (models.HighlyAvailableStatus, error) {
	return d.probe.LoadHighlyAvailableStatus(ctx, source)
}

// FindPrimaryDataSourceName returns the name of the member reporting itself
// as primary. Members are probed in name order; a member whose status cannot
// be loaded is logged and skipped. When several members claim the primary
// role, the one replicas follow wins, otherwise the first by name.
func (d *Discoverer) FindPrimaryDataSourceName(ctx context.Context, dataSources map[string]*datasource.DataSource) (string, bool) {
	var candidates []string
	var upstreams []string
	for _, name := range sortedNames(dataSources) {
		status, err := d.LoadStatus(ctx, dataSources[name])
		if err != nil {
			d.logger.Warn("failed to load replication status",
				zap.String("data_source", name),
				zap.String("error", logging.SanitizeError(err)),
			)
			continue
		}
		if status.Primary {
			candidates = append(candidates, name)
		} else if status.PrimaryAddress != "" {
			upstreams = append(upstreams, status.PrimaryAddress)
		}
	}

	switch len(candidates) {
	case 0:
		return "", false
	case 1:
		return candidates[0], true
	}

	for _, name := range candidates {
		if addr := dataSources[name].Addr; addr != "" && slices.Contains(upstreams, addr) {
			return name, true
		}
	}
	d.logger.Warn("multiple primaries reported, using first by name", zap.Strings("candidates", candidates))
	return candidates[0], true
}

// UpdateMemberState measures the lag of every member other than the current
// primary and publishes one disablement event per member that is over the
// threshold or could not be measured. A failing member never stops the loop.
func (d *Discoverer) UpdateMemberState(ctx context.Context, databaseName string, dataSources map[string]*datasource.DataSource, groupName string) map[string]models.StorageNodeStatus {
	primary := d.PrimaryDataSource()
	statuses := make(map[string]models.StorageNodeStatus, len(dataSources))

	for _, name := range sortedNames(dataSources) {
		if name == primary {
			statuses[name] = models.StorageNodeStatus{
				Role:  models.StorageNodeRolePrimary,
				State: models.StorageNodeEnabled,
			}
			continue
		}

		status := d.memberStatus(ctx, name, dataSources[name])
		statuses[name] = status
		metrics.ReplicationDelayMilliseconds.WithLabelValues(groupName, name).Set(float64(status.DelayMilliseconds))

		if status.State != models.StorageNodeDisabled {
			continue
		}
		event := models.DataSourceDisabledEvent{
			DatabaseName:   databaseName,
			GroupName:      groupName,
			DataSourceName: name,
			Status:         status,
			DetectedAt:     d.clock.Now(),
		}
		metrics.DataSourceDisabledTotal.WithLabelValues(groupName, name).Inc()
		if err := d.sink.Publish(ctx, event); err != nil {
			d.logger.Error("failed to publish disablement",
				zap.String("data_source", name),
				zap.String("error", logging.SanitizeError(err)),
			)
		}
	}
	return statuses
}

func (d *Discoverer) memberStatus(ctx context.Context, name string, source *datasource.DataSource) models.StorageNodeStatus {
	status := models.StorageNodeStatus{Role: models.StorageNodeRoleMember}

	delay, err := d.probe.LoadReplicationDelay(ctx, source)
	if err != nil {
		d.logger.Error("failed to load replication delay",
			zap.String("data_source", name),
			zap.String("error", logging.SanitizeError(err)),
		)
		status.State = models.StorageNodeDisabled
		status.DelayMilliseconds = -1
		return status
	}

	status.DelayMilliseconds = delay
	if delay <= d.threshold {
		status.State = models.StorageNodeEnabled
	} else {
		status.State = models.StorageNodeDisabled
		d.logger.Warn("replica lag over threshold",
			zap.String("data_source", name),
			zap.Duration("delay", time.Duration(delay)*time.Millisecond),
			zap.Int64("threshold_ms", d.threshold),
		)
	}
	return status
}

// PrimaryDataSource returns the last primary set; empty before discovery.
func (d *Discoverer) PrimaryDataSource() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.primary
}

func (d *Discoverer) SetPrimaryDataSource(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.primary != name {
		d.logger.Info("primary data source changed", zap.String("from", d.primary), zap.String("to", name))
	}
	d.primary = name
}

func sortedNames(dataSources map[string]*datasource.DataSource) []string {
	names := make([]string, 0, len(dataSources))
	for name := range dataSources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
