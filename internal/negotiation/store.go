// Package negotiation owns the ride negotiation state: accounts, rides, offers
// and per-ride messages, plus the rules for moving between them.
//
// Every command runs to completion under one store-wide lock, so the
// one-active-ride-per-passenger and one-offer-per-driver invariants hold no
// matter how many goroutines call in. Queries return copies.
package negotiation

import (
	"log/slog"
	"sync"
	"time"

	"github.com/example/ride-negotiation/internal/clock"
	"github.com/example/ride-negotiation/internal/idgen"
	"github.com/example/ride-negotiation/internal/logging"
	"github.com/example/ride-negotiation/internal/models"
	"github.com/example/ride-negotiation/internal/observability"
	"github.com/example/ride-negotiation/internal/storage"
)

// DefaultRetention is how long a ride survives before the sweep purges it.
const DefaultRetention = 15 * 24 * time.Hour

type Store struct {
	mu        sync.Mutex
	tables    *storage.Memory
	clock     clock.Clock
	ids       idgen.Generator
	retention time.Duration
	logger    *slog.Logger

	seq     uint64
	pending []Event

	// outbox holds committed events in Seq order until a drain delivers them
	outMu    sync.Mutex
	outbox   []Event
	draining bool

	subMu   sync.RWMutex
	subs    []subscription
	nextSub int
}

type Option func(*Store)

func WithClock(c clock.Clock) Option { return func(s *Store) { s.clock = c } }

func WithIDGenerator(g idgen.Generator) Option { return func(s *Store) { s.ids = g } }

func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// WithRetention overrides DefaultRetention. Non-positive values are ignored.
func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		tables:    storage.NewMemory(),
		clock:     clock.Real{},
		ids:       idgen.NewUUID(),
		retention: DefaultRetention,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Retention() time.Duration { return s.retention }

// run executes one command under the store lock, records its outcome and
// delivers the events it committed once the lock is released.
func (s *Store) run(command string, fn func() error) error {
	err := s.commit(fn)
	if err != nil {
		observability.CommandsTotal.WithLabelValues(command, KindName(err)).Inc()
		s.logger.Info("command rejected", "command", command, "error", err.Error(), "kind", KindName(err))
		return err
	}
	observability.CommandsTotal.WithLabelValues(command, "ok").Inc()
	s.logger.Debug("command applied", "command", command)
	s.drain()
	return nil
}

// commit runs fn under s.mu. Events queued by a successful fn join the
// outbox before the lock is released, so the outbox stays in Seq order.
func (s *Store) commit(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = nil
	err := fn()
	if err == nil && len(s.pending) > 0 {
		s.outMu.Lock()
		s.outbox = append(s.outbox, s.pending...)
		s.outMu.Unlock()
	}
	s.pending = nil
	return err
}

// read runs a query under the store lock.
func (s *Store) read(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// actor resolves the session to a live, unblocked account.
func (s *Store) actor(sess *Session) (*models.Account, error) {
	id, ok := sess.AccountID()
	if !ok {
		return nil, fail(ErrForbidden, EntityAccount, "")
	}
	a, ok := s.tables.Account(id)
	if !ok {
		return nil, fail(ErrForbidden, EntityAccount, id)
	}
	if a.Blocked {
		return nil, fail(ErrAccountBlocked, EntityAccount, a.ID)
	}
	return a, nil
}

func (s *Store) actorWithRole(sess *Session, role models.Role) (*models.Account, error) {
	a, err := s.actor(sess)
	if err != nil {
		return nil, err
	}
	if a.Role != role {
		return nil, fail(ErrForbidden, EntityAccount, a.ID)
	}
	return a, nil
}

func (s *Store) ride(id string) (*models.Ride, error) {
	r, ok := s.tables.Ride(id)
	if !ok {
		return nil, fail(ErrNotFound, EntityRide, id)
	}
	return r, nil
}

// postSystem appends the system message documenting a transition.
func (s *Store) postSystem(rideID, text string) {
	s.tables.AppendMessage(models.Message{
		ID:         s.ids.NewID(),
		RideID:     rideID,
		SenderID:   models.SystemSenderID,
		SenderName: "System",
		Text:       text,
		Timestamp:  s.clock.Now(),
		System:     true,
	})
}
