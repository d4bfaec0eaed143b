package weekview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jw6ventures/crmcal/internal/clock"
)

func TestNowTickerBroadcast(t *testing.T) {
	clk := clock.NewFake(at(13, 10, 0))
	tk := NewNowTicker(clk, nil)

	var mu sync.Mutex
	var got []time.Time
	unsubscribe := tk.Subscribe(func(now time.Time) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, now)
	})

	tk.tick()
	clk.Advance(time.Minute)
	tk.tick()
	unsubscribe()
	tk.tick()

	if len(got) != 2 {
		t.Fatalf("ticks = %d, want 2", len(got))
	}
	if !got[1].Equal(at(13, 10, 1)) {
		t.Fatalf("second tick = %v", got[1])
	}
}

func TestNowTickerRunStopsOnCancel(t *testing.T) {
	tk := NewNowTicker(clock.NewFake(at(13, 10, 0)), nil)
	ticked := make(chan struct{}, 1)
	tk.Subscribe(func(time.Time) {
		select {
		case ticked <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tk.Run(ctx) }()

	select {
	case <-ticked:
	case <-time.After(time.Second):
		t.Fatal("Run should tick immediately")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestNowScheduleEveryMinute(t *testing.T) {
	sched, err := cron.ParseStandard(NowSchedule)
	if err != nil {
		t.Fatal(err)
	}
	next := sched.Next(at(13, 10, 0).Add(10 * time.Second))
	if !next.Equal(at(13, 10, 1)) {
		t.Fatalf("next = %v", next)
	}
}
