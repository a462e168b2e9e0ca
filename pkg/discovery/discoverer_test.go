package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

type memberReply struct {
	status    models.HighlyAvailableStatus
	statusErr error
	delay     int64
	delayErr  error
}

// stubProbe answers by data source name.
type stubProbe map[string]memberReply

func (p stubProbe) reply(source datasource.Connector) memberReply {
	return p[source.(*datasource.DataSource).Name]
}

func (p stubProbe) LoadHighlyAvailableStatus(_ context.Context, source datasource.Connector) (models.HighlyAvailableStatus, error) {
	r := p.reply(source)
	return r.status, r.statusErr
}

func (p stubProbe) LoadReplicationDelay(_ context.Context, source datasource.Connector) (int64, error) {
	r := p.reply(source)
	return r.delay, r.delayErr
}

func group(addrs map[string]string) map[string]*datasource.DataSource {
	dataSources := make(map[string]*datasource.DataSource, len(addrs))
	for name, addr := range addrs {
		dataSources[name] = datasource.NewDataSource(name, models.DatabaseTypeMySQL, addr, nil)
	}
	return dataSources
}

func threeMembers() map[string]*datasource.DataSource {
	return group(map[string]string{
		"ds_0": "10.0.0.1:3306",
		"ds_1": "10.0.0.2:3306",
		"ds_2": "10.0.0.3:3306",
	})
}

func oneLaggingReplica() stubProbe {
	return stubProbe{
		"ds_0": {status: models.HighlyAvailableStatus{Primary: true}},
		"ds_1": {status: models.HighlyAvailableStatus{PrimaryAddress: "10.0.0.1:3306"}, delay: 0},
		"ds_2": {status: models.HighlyAvailableStatus{PrimaryAddress: "10.0.0.1:3306"}, delay: 5000},
	}
}

func drain(sink *ChannelSink) []models.DataSourceDisabledEvent {
	var events []models.DataSourceDisabledEvent
	for {
		select {
		case e := <-sink.Events():
			events = append(events, e)
		default:
			return events
		}
	}
}

func TestDiscoverer_FindPrimaryDataSourceName(t *testing.T) {
	d := NewDiscoverer(oneLaggingReplica(), Config{}, nil, nil, zaptest.NewLogger(t))

	name, ok := d.FindPrimaryDataSourceName(context.Background(), threeMembers())
	require.True(t, ok)
	assert.Equal(t, "ds_0", name)
}

func TestDiscoverer_FindPrimarySkipsFailingMembers(t *testing.T) {
	probe := stubProbe{
		"ds_0": {statusErr: errors.New("connection refused")},
		"ds_1": {status: models.HighlyAvailableStatus{Primary: true}},
		"ds_2": {status: models.HighlyAvailableStatus{PrimaryAddress: "10.0.0.2:3306"}},
	}
	d := NewDiscoverer(probe, Config{}, nil, nil, zaptest.NewLogger(t))

	name, ok := d.FindPrimaryDataSourceName(context.Background(), threeMembers())
	require.True(t, ok)
	assert.Equal(t, "ds_1", name)
}

func TestDiscoverer_FindPrimaryPrefersFollowedCandidate(t *testing.T) {
	probe := stubProbe{
		"ds_0": {status: models.HighlyAvailableStatus{Primary: true}},
		"ds_1": {status: models.HighlyAvailableStatus{Primary: true}},
		"ds_2": {status: models.HighlyAvailableStatus{PrimaryAddress: "10.0.0.2:3306"}},
	}
	d := NewDiscoverer(probe, Config{}, nil, nil, zaptest.NewLogger(t))

	name, ok := d.FindPrimaryDataSourceName(context.Background(), threeMembers())
	require.True(t, ok)
	assert.Equal(t, "ds_1", name)
}

func TestDiscoverer_NoPrimary(t *testing.T) {
	probe := stubProbe{
		"ds_0": {status: models.HighlyAvailableStatus{PrimaryAddress: "10.0.0.9:3306"}},
		"ds_1": {status: models.HighlyAvailableStatus{PrimaryAddress: "10.0.0.9:3306"}},
		"ds_2": {statusErr: errors.New("timeout")},
	}
	d := NewDiscoverer(probe, Config{}, nil, nil, nil)

	_, ok := d.FindPrimaryDataSourceName(context.Background(), threeMembers())
	assert.False(t, ok)
}

func TestDiscoverer_UpdateMemberState(t *testing.T) {
	sink := NewChannelSink(10)
	clock := clockwork.NewFakeClock()
	d := NewDiscoverer(oneLaggingReplica(), Config{DelayMillisecondsThreshold: 1000}, sink, clock, zaptest.NewLogger(t))
	d.SetPrimaryDataSource("ds_0")

	statuses := d.UpdateMemberState(context.Background(), "logic_db", threeMembers(), "readwrite_ds")

	events := drain(sink)
	require.Len(t, events, 1)
	assert.Equal(t, "ds_2", events[0].DataSourceName)
	assert.Equal(t, "logic_db", events[0].DatabaseName)
	assert.Equal(t, "readwrite_ds", events[0].GroupName)
	assert.Equal(t, models.StorageNodeDisabled, events[0].Status.State)
	assert.Equal(t, int64(5000), events[0].Status.DelayMilliseconds)
	assert.Equal(t, clock.Now(), events[0].DetectedAt)

	assert.Equal(t, models.StorageNodeRolePrimary, statuses["ds_0"].Role)
	assert.Equal(t, models.StorageNodeEnabled, statuses["ds_1"].State)
	assert.Equal(t, models.StorageNodeDisabled, statuses["ds_2"].State)
}

func TestDiscoverer_ThresholdBoundary(t *testing.T) {
	tests := []struct {
		name      string
		delay     int64
		threshold int64
		want      models.StorageNodeState
	}{
		{name: "zero lag zero threshold", delay: 0, threshold: 0, want: models.StorageNodeEnabled},
		{name: "at threshold", delay: 1000, threshold: 1000, want: models.StorageNodeEnabled},
		{name: "over threshold", delay: 1001, threshold: 1000, want: models.StorageNodeDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe := stubProbe{"replica": {delay: tt.delay}}
			d := NewDiscoverer(probe, Config{DelayMillisecondsThreshold: tt.threshold}, NewChannelSink(1), nil, nil)

			statuses := d.UpdateMemberState(context.Background(), "db", group(map[string]string{"replica": ""}), "g")
			assert.Equal(t, tt.want, statuses["replica"].State)
		})
	}
}

func TestDiscoverer_DelayFailureIsolatedPerMember(t *testing.T) {
	probe := stubProbe{
		"ds_0": {status: models.HighlyAvailableStatus{Primary: true}},
		"ds_1": {delayErr: errors.New("access denied")},
		"ds_2": {delay: 10},
	}
	sink := NewChannelSink(10)
	d := NewDiscoverer(probe, Config{DelayMillisecondsThreshold: 100}, sink, nil, zaptest.NewLogger(t))
	d.SetPrimaryDataSource("ds_0")

	statuses := d.UpdateMemberState(context.Background(), "db", threeMembers(), "g")

	assert.Equal(t, models.StorageNodeDisabled, statuses["ds_1"].State)
	assert.Equal(t, int64(-1), statuses["ds_1"].DelayMilliseconds)
	assert.Equal(t, models.StorageNodeEnabled, statuses["ds_2"].State)

	events := drain(sink)
	require.Len(t, events, 1)
	assert.Equal(t, "ds_1", events[0].DataSourceName)
}

func TestHeartbeatJob_ExcludesDisabledDataSources(t *testing.T) {
	sink := NewChannelSink(10)
	d := NewDiscoverer(oneLaggingReplica(), Config{DelayMillisecondsThreshold: 1000}, sink, nil, zaptest.NewLogger(t))
	job := NewHeartbeatJob(d, threeMembers(), HeartbeatConfig{
		DatabaseName:            "logic_db",
		GroupName:               "readwrite_ds",
		Interval:                time.Second,
		DisabledDataSourceNames: []string{"ds_2"},
	}, nil, zaptest.NewLogger(t))

	statuses := job.Execute(context.Background())

	assert.Equal(t, "ds_0", d.PrimaryDataSource())
	assert.NotContains(t, statuses, "ds_2")
	assert.Empty(t, drain(sink))
}

func TestHeartbeatJob_Run(t *testing.T) {
	sink := NewChannelSink(10)
	clock := clockwork.NewFakeClock()
	d := NewDiscoverer(oneLaggingReplica(), Config{DelayMillisecondsThreshold: 1000}, sink, clock, zaptest.NewLogger(t))
	job := NewHeartbeatJob(d, threeMembers(), HeartbeatConfig{
		DatabaseName: "logic_db",
		GroupName:    "readwrite_ds",
		Interval:     10 * time.Second,
	}, clock, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- job.Run(ctx) }()

	receive := func() models.DataSourceDisabledEvent {
		select {
		case e := <-sink.Events():
			return e
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for heartbeat event")
			return models.DataSourceDisabledEvent{}
		}
	}

	assert.Equal(t, "ds_2", receive().DataSourceName)
	clock.Advance(10 * time.Second)
	assert.Equal(t, "ds_2", receive().DataSourceName)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("heartbeat did not stop")
	}
}

func TestRedisSink_PublishError(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	err := NewRedisSink(client, "events").Publish(context.Background(), models.DataSourceDisabledEvent{DataSourceName: "ds_2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish to events")
}

func TestMultiSink(t *testing.T) {
	a, b := NewChannelSink(1), NewChannelSink(1)
	err := MultiSink{a, NewLogSink(nil), b}.Publish(context.Background(), models.DataSourceDisabledEvent{DataSourceName: "x"})
	require.NoError(t, err)
	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
}
