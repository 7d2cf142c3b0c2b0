package retention

import (
	"context"
	"testing"

	"warden-hq/callisto/pkg/journal/storage"
)

func TestScheduler_StartStop(t *testing.T) {
	p := NewPruner(storage.NewMemoryStorage(), &Config{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !p.scheduler.IsRunning() {
		t.Error("scheduler should be running")
	}
	if p.NextPruning() == nil {
		t.Error("NextPruning should be scheduled")
	}

	p.Stop()
	if p.scheduler.IsRunning() {
		t.Error("scheduler should have stopped")
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	p := NewPruner(storage.NewMemoryStorage(), &Config{
		PruneSchedule: "not a cron expression",
	})

	if err := p.Start(context.Background()); err == nil {
		t.Error("Start should reject an invalid cron expression")
		p.Stop()
	}
}

func TestScheduler_EmptyScheduleIsIdle(t *testing.T) {
	p := NewPruner(storage.NewMemoryStorage(), &Config{})

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.scheduler.IsRunning() {
		t.Error("empty schedule must leave the scheduler idle")
	}
}
