/*
Package patronlink is a library for exporting the patrons of a Discord guild,
linked to their VRChat profiles, as a chain of avatar images that can be read
from inside a VRChat world.
*/
package patronlink

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bodgit/patronlink/avatar"
	"github.com/bodgit/patronlink/config"
	"github.com/bodgit/patronlink/state"
	"github.com/bodgit/patronlink/upload"
)

const (
	defaultBusyTimeout = 10 * time.Minute
	defaultWorkers     = 2
)

// Linker exports the roster held in a LinkDB.
type Linker struct {
	db       *LinkDB
	state    *state.Store
	uploader upload.Uploader
	logger   *slog.Logger

	tiers       []config.Tier
	slots       []avatar.ID
	tempDir     string
	workers     int
	busyTimeout time.Duration
	now         func() time.Time

	mu      sync.Mutex
	busy    bool
	cycle   uint64
	started time.Time
}

// Option configures a Linker.
type Option func(*Linker)

// WithTiers sets the exported tiers.
func WithTiers(tiers []config.Tier) Option {
	return func(l *Linker) {
		l.tiers = tiers
	}
}

// WithSlots sets the avatars images are uploaded to, in chain order.
func WithSlots(slots []avatar.ID) Option {
	return func(l *Linker) {
		l.slots = slots
	}
}

// WithTempDir sets where images are written before uploading.
func WithTempDir(dir string) Option {
	return func(l *Linker) {
		l.tempDir = dir
	}
}

// WithWorkers sets the number of concurrent uploads.
func WithWorkers(n int) Option {
	return func(l *Linker) {
		if n > 0 {
			l.workers = n
		}
	}
}

// WithBusyTimeout sets how long a sync may run before another is allowed to
// start regardless.
func WithBusyTimeout(d time.Duration) Option {
	return func(l *Linker) {
		l.busyTimeout = d
	}
}

// New returns a Linker reading from db, recording exports in st and
// uploading with u.
func New(db *LinkDB, st *state.Store, u upload.Uploader, logger *slog.Logger, opts ...Option) *Linker {
	l := &Linker{
		db:          db,
		state:       st,
		uploader:    u,
		logger:      logger,
		workers:     defaultWorkers,
		busyTimeout: defaultBusyTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FromConfig returns a Linker configured from c.
func FromConfig(c *config.Config, db *LinkDB, st *state.Store, u upload.Uploader, logger *slog.Logger) (*Linker, error) {
	slots, err := c.Slots()
	if err != nil {
		return nil, err
	}
	return New(db, st, u, logger,
		WithTiers(c.Tiers),
		WithSlots(slots),
		WithTempDir(c.TempDir),
		WithWorkers(c.Workers),
		WithBusyTimeout(c.BusyTimeout),
	), nil
}
