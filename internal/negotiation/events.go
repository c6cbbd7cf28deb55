package negotiation

import (
	"time"
)

type EventKind string

const (
	EventAccountRegistered EventKind = "account_registered"
	EventAccountBlocked    EventKind = "account_blocked"
	EventAccountUnblocked  EventKind = "account_unblocked"
	EventVehicleUpdated    EventKind = "vehicle_updated"
	EventRideCreated       EventKind = "ride_created"
	EventOfferSubmitted    EventKind = "offer_submitted"
	EventOfferAccepted     EventKind = "offer_accepted"
	EventOfferRejected     EventKind = "offer_rejected"
	EventRideConfirmed     EventKind = "ride_confirmed"
	EventRideCancelled     EventKind = "ride_cancelled"
	EventRideCompleted     EventKind = "ride_completed"
	EventMessagePosted     EventKind = "message_posted"
	EventRidePurged        EventKind = "ride_purged"
)

// Event describes one committed change. Seq increases by one per event across
// the whole store.
type Event struct {
	Seq       uint64    `json:"seq"`
	Kind      EventKind `json:"kind"`
	RideID    string    `json:"ride_id,omitempty"`
	OfferID   string    `json:"offer_id,omitempty"`
	AccountID string    `json:"account_id,omitempty"`
	At        time.Time `json:"at"`
}

type subscription struct {
	id int
	fn func(Event)
}

// Subscribe registers fn for every event committed from now on and returns a
// function that removes it. Events reach fn in Seq order, one at a time,
// after the store lock is released. fn may call back into the store but
// should not block: a slow fn delays delivery to every subscriber.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// emit queues an event; callers hold s.mu.
func (s *Store) emit(e Event) {
	s.seq++
	e.Seq = s.seq
	if e.At.IsZero() {
		e.At = s.clock.Now()
	}
	s.pending = append(s.pending, e)
}

// drain delivers the outbox. Only one goroutine drains at a time; others
// leave their events to it, which keeps delivery in Seq order and lets a
// subscriber call back into the store.
func (s *Store) drain() {
	s.outMu.Lock()
	if s.draining {
		s.outMu.Unlock()
		return
	}
	s.draining = true
	s.outMu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			s.outMu.Lock()
			s.draining = false
			s.outMu.Unlock()
			panic(rec)
		}
	}()

	for {
		s.outMu.Lock()
		batch := s.outbox
		s.outbox = nil
		if len(batch) == 0 {
			s.draining = false
			s.outMu.Unlock()
			return
		}
		s.outMu.Unlock()
		s.deliver(batch)
	}
}

func (s *Store) deliver(events []Event) {
	s.subMu.RLock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()

	for _, e := range events {
		for _, sub := range subs {
			sub.fn(e)
		}
	}
}
