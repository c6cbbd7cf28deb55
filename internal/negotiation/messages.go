package negotiation

import (
	"iter"
	"sort"
	"strings"

	"github.com/example/ride-negotiation/internal/models"
)

// PostMessage appends a chat line from a participant of the ride: its
// requester, any driver who bid on it, the assigned driver, or an admin.
func (s *Store) PostMessage(sess *Session, rideID, text string) (models.Message, error) {
	var out models.Message
	err := s.run("post_message", func() error {
		a, r, err := s.participant(sess, rideID)
		if err != nil {
			return err
		}
		if r.Status.Terminal() {
			return fail(ErrInvalidState, EntityRide, r.ID)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return fail(ErrEmptyMessage, EntityRide, r.ID)
		}

		out = models.Message{
			ID:         s.ids.NewID(),
			RideID:     r.ID,
			SenderID:   a.ID,
			SenderName: a.Name,
			Text:       text,
			Timestamp:  s.clock.Now(),
		}
		s.tables.AppendMessage(out)
		s.emit(Event{Kind: EventMessagePosted, RideID: r.ID, AccountID: a.ID})
		return nil
	})
	return out, err
}

// MessagesForRide returns the ride's log ordered by timestamp, oldest first.
// The sequence iterates a snapshot and can be ranged over repeatedly.
func (s *Store) MessagesForRide(rideID string) (iter.Seq[models.Message], error) {
	var (
		msgs []models.Message
		err  error
	)
	s.read(func() {
		if _, err = s.ride(rideID); err != nil {
			return
		}
		msgs = s.tables.MessagesForRide(rideID)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Timestamp.Before(msgs[j].Timestamp) })

	return func(yield func(models.Message) bool) {
		for _, m := range msgs {
			if !yield(m) {
				return
			}
		}
	}, nil
}

// MessagesVisibleTo is MessagesForRide for a caller who must be a participant
// of the ride.
func (s *Store) MessagesVisibleTo(sess *Session, rideID string) (iter.Seq[models.Message], error) {
	var err error
	s.read(func() { _, _, err = s.participant(sess, rideID) })
	if err != nil {
		return nil, err
	}
	return s.MessagesForRide(rideID)
}

// participant resolves the session and ride and checks the caller takes
// part in it. Callers hold s.mu.
func (s *Store) participant(sess *Session, rideID string) (*models.Account, *models.Ride, error) {
	a, err := s.actor(sess)
	if err != nil {
		return nil, nil, err
	}
	r, err := s.ride(rideID)
	if err != nil {
		return nil, nil, err
	}
	if !s.isParticipant(a, r) {
		return nil, nil, fail(ErrForbidden, EntityRide, r.ID)
	}
	return a, r, nil
}

func (s *Store) isParticipant(a *models.Account, r *models.Ride) bool {
	switch {
	case a.Role == models.RoleAdmin:
		return true
	case a.ID == r.RequesterID, a.ID == r.DriverID:
		return true
	case a.Role == models.RoleDriver:
		for _, o := range s.tables.OffersForRide(r.ID) {
			if o.DriverID == a.ID {
				return true
			}
		}
	}
	return false
}
