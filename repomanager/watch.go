package repomanager

import (
	"context"
	"time"

	"github.com/tina25311/docaggr/internal/gitexec"
)

// Watch runs EnsureAll repeatedly on interval until ctx is cancelled,
// invoking onDone after every cycle (including the first). It's an optional
// longer-lived mode, not the primary content-aggregation entrypoint — a
// one-shot caller should use EnsureAll directly. Adapted from the teacher's
// Repository.StartLoop/StopLoop, regeneralized from "one goroutine per
// repository" to "one loop over an entire batch", since the Manager already
// ensures everything together in a single EnsureAll call.
func (m *Manager) Watch(ctx context.Context, interval time.Duration, reqs []Request, onDone func([]*Repository, error)) {
	for {
		repos, err := m.EnsureAll(ctx, true, reqs)
		if err != nil {
			m.log.Error("watch cycle failed", "err", err)
		}
		onDone(repos, err)

		t := time.NewTimer(gitexec.Jitter(interval, 0.2))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}
