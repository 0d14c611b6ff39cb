package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pscheid92/thereiwas/internal/domain"
	"github.com/pscheid92/thereiwas/internal/poller"
)

type positionPoller interface {
	Start(ctx context.Context) *poller.Handle
	Latest() domain.PositionSnapshot
	Refresh(ctx context.Context) domain.PositionSnapshot
}

// DashboardService runs the poller while at least one viewer is connected.
type DashboardService struct {
	poller positionPoller
	ctx    context.Context

	mu     sync.Mutex
	handle *poller.Handle
}

// NewDashboardService creates the service. Poll loops inherit ctx.
func NewDashboardService(ctx context.Context, p positionPoller) *DashboardService {
	return &DashboardService{poller: p, ctx: ctx}
}

// OnFirstViewer starts polling unless a loop is already running.
func (s *DashboardService) OnFirstViewer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil && !s.handle.Stopped() {
		return
	}
	s.handle = s.poller.Start(s.ctx)
	slog.Info("Position polling started")
}

// OnLastViewer stops polling. A fetch in flight is discarded.
func (s *DashboardService) OnLastViewer() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle == nil {
		return
	}
	s.handle.Stop()
	s.handle = nil
	slog.Info("Position polling stopped")
}

func (s *DashboardService) Polling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil && !s.handle.Stopped()
}

func (s *DashboardService) Latest() domain.PositionSnapshot {
	return s.poller.Latest()
}

// Current returns the latest snapshot. Without a running loop the snapshot
// would be frozen at the last viewer's departure, so one cycle is run first.
func (s *DashboardService) Current(ctx context.Context) domain.PositionSnapshot {
	if s.Polling() {
		return s.poller.Latest()
	}
	return s.poller.Refresh(ctx)
}

// Stop ends polling on shutdown.
func (s *DashboardService) Stop() {
	s.OnLastViewer()
}
