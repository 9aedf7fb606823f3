package patronlink

import (
	"context"
	"fmt"
	"time"

	"github.com/bodgit/patronlink/avatar"
	"github.com/bodgit/patronlink/roster"
	"github.com/bodgit/patronlink/state"
)

// SyncResult describes the outcome of a sync cycle that didn't fail.
type SyncResult int

const (
	// SyncFailed is returned alongside an error.
	SyncFailed SyncResult = iota
	// SyncUploaded means a new roster was uploaded.
	SyncUploaded
	// SyncUnchanged means the roster matched the last upload.
	SyncUnchanged
	// SyncEmpty means there were no linked members to export.
	SyncEmpty
	// SyncBusy means another sync cycle was already running.
	SyncBusy
)

func (r SyncResult) String() string {
	switch r {
	case SyncFailed:
		return "failed"
	case SyncUploaded:
		return "uploaded"
	case SyncUnchanged:
		return "unchanged"
	case SyncEmpty:
		return "empty"
	case SyncBusy:
		return "busy"
	default:
		return "unknown"
	}
}

func (l *Linker) acquire(force bool) (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.busy && !force && l.now().Sub(l.started) < l.busyTimeout {
		return 0, false
	}
	if l.busy {
		l.logger.Warn("overriding running sync", "started", l.started)
	}

	l.busy = true
	l.cycle++
	l.started = l.now()

	return l.cycle, true
}

func (l *Linker) release(cycle uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// A forced sync may have taken over
	if l.cycle == cycle {
		l.busy = false
	}
}

func (l *Linker) fingerprint(payload string) state.Fingerprint {
	slots := make([]string, len(l.slots))
	for i, s := range l.slots {
		slots[i] = s.String()
	}
	return state.Sum([]byte(payload), slots...)
}

// Sync exports the roster if it has changed since the last successful
// export. With force set the roster is exported regardless and a running
// sync doesn't prevent this one from starting.
func (l *Linker) Sync(ctx context.Context, force bool) (SyncResult, error) {
	cycle, ok := l.acquire(force)
	if !ok {
		l.logger.Warn("sync already in progress")
		return SyncBusy, nil
	}
	defer l.release(cycle)

	start := l.now()
	l.logger.Debug("syncing roster", "force", force)

	r, err := l.db.Roster(l.tiers)
	if err != nil {
		return SyncFailed, err
	}

	for _, t := range r {
		for _, m := range t.Members {
			if !roster.Valid(m) {
				l.logger.Warn("member name contains a separator", "tier", t.Name, "member", m)
			}
		}
	}

	payload, ok := r.Serialize()
	if !ok {
		l.logger.Warn("no linked members to export")
		return SyncEmpty, nil
	}

	fp := l.fingerprint(payload)
	if !force {
		last, ok, err := l.state.Last()
		if err != nil {
			return SyncFailed, err
		}
		if ok && last.Fingerprint == fp {
			l.logger.Debug("no changes, skipping upload")
			return SyncUnchanged, nil
		}
	}

	l.logger.Debug("exporting roster", "payload", payload)

	images, err := avatar.Encode([]byte(payload), l.slots)
	if err != nil {
		return SyncFailed, fmt.Errorf("encode roster: %w", err)
	}

	if err := l.upload(ctx, images); err != nil {
		return SyncFailed, err
	}

	if err := l.state.Record(state.Checkpoint{
		Fingerprint: fp,
		Images:      len(images),
		Time:        l.now(),
	}); err != nil {
		return SyncFailed, err
	}

	l.logger.Info("roster uploaded", "bytes", len(payload), "images", len(images), "took", l.now().Sub(start))

	return SyncUploaded, nil
}

// Run syncs after delay and then every interval until ctx is cancelled.
// Failed cycles are logged and retried at the next interval.
func (l *Linker) Run(ctx context.Context, delay, interval time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		result, err := l.Sync(ctx, false)
		if err != nil {
			l.logger.Error("sync failed, retrying next interval", "err", err, "interval", interval)
		} else {
			l.logger.Debug("sync finished", "result", result)
		}

		timer.Reset(interval)
	}
}
