package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/lumilearn/lumifeed/app/feed"
)

// SweepSessionsTask closes feed sessions that have been idle past their
// TTL. Closing is a hard teardown: pending dwell timers are cancelled and
// playback halts, exactly as when the user navigates away.
type SweepSessionsTask struct {
	Task
	registry *feed.Registry
	ttl      time.Duration
}

func NewSweepSessionsTask(registry *feed.Registry, ttl time.Duration) *SweepSessionsTask {
	return &SweepSessionsTask{
		Task:     NewTask(TaskTypeSweepSessions, "idle-sessions"),
		registry: registry,
		ttl:      ttl,
	}
}

func (t *SweepSessionsTask) Execute(ctx context.Context) error {
	swept := t.registry.SweepIdle(t.ttl)
	if swept > 0 {
		slog.Info("Idle session sweep completed", "swept", swept, "remaining", t.registry.Count())
	}
	return nil
}
