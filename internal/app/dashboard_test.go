package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/thereiwas/internal/domain"
	"github.com/pscheid92/thereiwas/internal/poller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *countingSource) FetchPositions(_ context.Context) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return []domain.Position{{HorizontalAccuracy: 1, Latitude: 51, Longitude: 6}}, nil
}

type discardPublisher struct{}

func (discardPublisher) PublishPositions(context.Context, domain.PositionSnapshot) {}

type trackingPoller struct {
	*poller.Poller
	mu      sync.Mutex
	handles []*poller.Handle
}

func (t *trackingPoller) Start(ctx context.Context) *poller.Handle {
	h := t.Poller.Start(ctx)
	t.mu.Lock()
	t.handles = append(t.handles, h)
	t.mu.Unlock()
	return h
}

func newTrackingPoller() *trackingPoller {
	return newTrackingPollerWith(&countingSource{})
}

func newTrackingPollerWith(source *countingSource) *trackingPoller {
	return &trackingPoller{Poller: poller.New(source, discardPublisher{}, clockwork.NewFakeClock(), poller.Options{})}
}

func TestDashboardService_FirstViewerStartsPolling(t *testing.T) {
	p := newTrackingPoller()
	svc := NewDashboardService(context.Background(), p)
	defer svc.Stop()

	svc.OnFirstViewer()
	svc.OnFirstViewer()

	assert.True(t, svc.Polling())
	assert.Len(t, p.handles, 1)
}

func TestDashboardService_LastViewerStopsPolling(t *testing.T) {
	p := newTrackingPoller()
	svc := NewDashboardService(context.Background(), p)

	svc.OnFirstViewer()
	svc.OnLastViewer()

	assert.False(t, svc.Polling())
	require.Len(t, p.handles, 1)
	assert.True(t, p.handles[0].Stopped())

	assert.NotPanics(t, svc.OnLastViewer)
}

func TestDashboardService_RestartAfterStop(t *testing.T) {
	p := newTrackingPoller()
	svc := NewDashboardService(context.Background(), p)
	defer svc.Stop()

	svc.OnFirstViewer()
	svc.OnLastViewer()
	svc.OnFirstViewer()

	require.Len(t, p.handles, 2)
	assert.True(t, p.handles[0].Stopped())
	assert.False(t, p.handles[1].Stopped())
}

func TestDashboardService_LatestBeforePolling(t *testing.T) {
	svc := NewDashboardService(context.Background(), newTrackingPoller())

	latest := svc.Latest()
	assert.Equal(t, domain.DefaultMapCenter, latest.Center)
	assert.Empty(t, latest.Positions)
}

func TestDashboardService_CurrentWithoutViewersFetches(t *testing.T) {
	source := &countingSource{}
	svc := NewDashboardService(context.Background(), newTrackingPollerWith(source))

	current := svc.Current(context.Background())

	require.Len(t, current.Positions, 1)
	assert.Equal(t, domain.Coordinate{Latitude: 51, Longitude: 6}, current.Center)
	assert.Equal(t, 1, source.callCount())
	assert.False(t, svc.Polling())
}

func TestDashboardService_CurrentWhilePollingUsesLatest(t *testing.T) {
	source := &countingSource{}
	svc := NewDashboardService(context.Background(), newTrackingPollerWith(source))
	svc.OnFirstViewer()
	defer svc.Stop()

	require.Eventually(t, func() bool { return len(svc.Latest().Positions) == 1 }, time.Second, 5*time.Millisecond)
	calls := source.callCount()

	current := svc.Current(context.Background())

	assert.Equal(t, svc.Latest(), current)
	assert.Equal(t, calls, source.callCount())
}
