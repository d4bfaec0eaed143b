package weekview

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jw6ventures/crmcal/internal/clock"
)

// NowSchedule fires at the top of every minute.
const NowSchedule = "* * * * *"

// NowTicker broadcasts the current time once a minute so the now-line and
// anything keyed on it stay fresh.
type NowTicker struct {
	clock  clock.Clock
	logger *zap.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]func(time.Time)
}

func NewNowTicker(clk clock.Clock, logger *zap.Logger) *NowTicker {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NowTicker{clock: clk, logger: logger.Named("now"), subs: make(map[int]func(time.Time))}
}

// Subscribe registers fn for every tick. The returned func unsubscribes.
func (t *NowTicker) Subscribe(fn func(time.Time)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

func (t *NowTicker) tick() {
	now := t.clock.Now()
	t.mu.Lock()
	fns := make([]func(time.Time), 0, len(t.subs))
	for _, fn := range t.subs {
		fns = append(fns, fn)
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn(now)
	}
}

// Run ticks once immediately and then on NowSchedule until ctx is done.
func (t *NowTicker) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(NowSchedule, t.tick); err != nil {
		return err
	}
	t.tick()
	c.Start()
	t.logger.Debug("now ticker started")
	<-ctx.Done()
	<-c.Stop().Done()
	t.logger.Debug("now ticker stopped")
	return nil
}
