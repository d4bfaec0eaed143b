// Package ui serves the JSON API behind the CRM calendar: grid sessions
// with their drag and resize gestures, and the event CRUD the edit dialog
// uses.
package ui

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jw6ventures/crmcal/internal/calendar"
	"github.com/jw6ventures/crmcal/internal/clock"
	"github.com/jw6ventures/crmcal/internal/config"
	"github.com/jw6ventures/crmcal/internal/gesture"
)

// Backend is the storage the handlers need. *store.Store satisfies it.
type Backend interface {
	calendar.Persistence
	calendar.MemberDirectory
	calendar.SettingsSource
	GetEvent(ctx context.Context, workspaceID, id string) (*calendar.Event, error)
	SaveSettings(ctx context.Context, workspaceID string, s calendar.Settings) error
	UpsertMember(ctx context.Context, workspaceID string, m calendar.Member) error
	EnsureWorkspace(ctx context.Context, workspaceID string) error
}

// Handler serves the API routes.
type Handler struct {
	cfg       *config.Config
	backend   Backend
	publisher calendar.Publisher
	clock     clock.Clock
	logger    *zap.Logger

	mu         sync.Mutex
	workspaces map[string]*calendar.Orchestrator

	sessions *sessionRegistry
}

// NewHandler creates a Handler. publisher, clk and logger may be nil.
func NewHandler(cfg *config.Config, backend Backend, publisher calendar.Publisher, clk clock.Clock, logger *zap.Logger) *Handler {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	idle := cfg.Grid.SessionIdleTimeout
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	return &Handler{
		cfg:        cfg,
		backend:    backend,
		publisher:  publisher,
		clock:      clk,
		logger:     logger.Named("ui"),
		workspaces: make(map[string]*calendar.Orchestrator),
		sessions:   newSessionRegistry(idle),
	}
}

// newOrchestrator seeds the workspace and loads its members and settings.
// Member and settings failures degrade to defaults.
func (h *Handler) newOrchestrator(ctx context.Context, workspaceID string) (*calendar.Orchestrator, error) {
	if err := h.backend.EnsureWorkspace(ctx, workspaceID); err != nil {
		return nil, fmt.Errorf("ensure workspace: %w", err)
	}
	o := calendar.New(workspaceID, calendar.Deps{
		Store:     h.backend,
		Members:   h.backend,
		Settings:  h.backend,
		Publisher: h.publisher,
		Clock:     h.clock,
		Logger:    h.logger,
		Palette:   h.cfg.Grid.MemberPalette,
	})
	if _, err := o.LoadSettings(ctx); err != nil {
		h.logger.Warn("load settings failed", zap.String("workspace_id", workspaceID), zap.Error(err))
	}
	if _, err := o.LoadMembers(ctx); err != nil {
		h.logger.Warn("load members failed", zap.String("workspace_id", workspaceID), zap.Error(err))
	}
	return o, nil
}

// workspace returns the shared orchestrator for workspaceID, creating it on
// first use. The CRUD routes go through it so per-event locks are shared.
func (h *Handler) workspace(ctx context.Context, workspaceID string) (*calendar.Orchestrator, error) {
	h.mu.Lock()
	o, ok := h.workspaces[workspaceID]
	h.mu.Unlock()
	if ok {
		return o, nil
	}

	o, err := h.newOrchestrator(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.workspaces[workspaceID]; ok {
		return existing, nil
	}
	h.workspaces[workspaceID] = o
	return o, nil
}

func (h *Handler) suppressor() gesture.Suppressor {
	if h.cfg.Grid.ClickSuppression == config.SuppressOnce {
		return &gesture.OnceSuppressor{}
	}
	return gesture.NewWindowSuppressor(gesture.ClickSuppressWindow)
}

// SweepSessions drops grid sessions idle since before now minus the idle
// timeout. It is meant to be subscribed to the now ticker.
func (h *Handler) SweepSessions(now time.Time) {
	if n := h.sessions.sweep(now); n > 0 {
		h.logger.Info("expired idle grid sessions", zap.Int("count", n))
	}
}
