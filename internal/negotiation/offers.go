package negotiation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/ride-negotiation/internal/models"
)

// SubmitOffer records the calling driver's bid on a ride. A driver bids at
// most once per ride; the first bid moves a pending ride to negotiating.
func (s *Store) SubmitOffer(sess *Session, rideID string, amount decimal.Decimal) (models.Offer, error) {
	var out models.Offer
	err := s.run("submit_offer", func() error {
		d, err := s.actorWithRole(sess, models.RoleDriver)
		if err != nil {
			return err
		}
		r, err := s.ride(rideID)
		if err != nil {
			return err
		}
		if r.Status.Terminal() {
			return fail(ErrForbidden, EntityRide, r.ID)
		}
		if !r.Status.Open() {
			return fail(ErrInvalidState, EntityRide, r.ID)
		}
		if !amount.IsPositive() {
			return fail(ErrInvalidInput, EntityOffer, "")
		}
		for _, o := range s.tables.OffersForRide(r.ID) {
			if o.DriverID == d.ID {
				return fail(ErrDuplicateOffer, EntityOffer, o.ID)
			}
		}

		var vehicle models.Vehicle
		if d.Vehicle != nil {
			vehicle = *d.Vehicle
		}
		o := &models.Offer{
			ID:         s.ids.NewID(),
			RideID:     r.ID,
			DriverID:   d.ID,
			DriverName: d.Name,
			Vehicle:    vehicle,
			Amount:     amount,
			Status:     models.OfferPending,
		}
		s.tables.SaveOffer(o)
		if r.Status == models.RidePending {
			r.Status = models.RideNegotiating
		}
		s.postSystem(r.ID, fmt.Sprintf("Offer of %s received from %s (%s)", money(amount), d.Name, vehicle.Model))
		s.emit(Event{Kind: EventOfferSubmitted, RideID: r.ID, OfferID: o.ID, AccountID: d.ID})
		out = *o
		return nil
	})
	return out, err
}

// AcceptOffer marks a pending offer accepted. Other offers on the ride keep
// their status, so more than one may be accepted at once; the first driver
// to confirm takes the ride.
func (s *Store) AcceptOffer(sess *Session, offerID string) (models.Offer, error) {
	return s.answerOffer(sess, offerID, models.OfferAccepted)
}

// RejectOffer marks a pending offer rejected. The ride status is unaffected.
func (s *Store) RejectOffer(sess *Session, offerID string) (models.Offer, error) {
	return s.answerOffer(sess, offerID, models.OfferRejected)
}

func (s *Store) answerOffer(sess *Session, offerID string, to models.OfferStatus) (models.Offer, error) {
	command, kind := "accept_offer", EventOfferAccepted
	if to == models.OfferRejected {
		command, kind = "reject_offer", EventOfferRejected
	}

	var out models.Offer
	err := s.run(command, func() error {
		a, err := s.actor(sess)
		if err != nil {
			return err
		}
		o, ok := s.tables.Offer(offerID)
		if !ok {
			return fail(ErrNotFound, EntityOffer, offerID)
		}
		r, err := s.ride(o.RideID)
		if err != nil {
			return err
		}
		if a.ID != r.RequesterID {
			return fail(ErrForbidden, EntityOffer, o.ID)
		}
		if o.Status != models.OfferPending || !r.Status.Open() {
			return fail(ErrInvalidState, EntityOffer, o.ID)
		}

		o.Status = to
		if to == models.OfferAccepted {
			s.postSystem(r.ID, fmt.Sprintf("Offer from %s accepted by the passenger. Waiting for driver confirmation.", o.DriverName))
		} else {
			s.postSystem(r.ID, fmt.Sprintf("Offer from %s rejected by the passenger.", o.DriverName))
		}
		s.emit(Event{Kind: kind, RideID: r.ID, OfferID: o.ID, AccountID: a.ID})
		out = *o
		return nil
	})
	return out, err
}
