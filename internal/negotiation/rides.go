package negotiation

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/example/ride-negotiation/internal/models"
)

// CreateRide opens a ride request for the calling passenger at the price they
// are willing to pay. A passenger holds at most one pending, negotiating or
// confirmed ride at a time.
func (s *Store) CreateRide(sess *Session, origin, destination string, offerPrice decimal.Decimal) (models.Ride, error) {
	var out models.Ride
	err := s.run("create_ride", func() error {
		p, err := s.actorWithRole(sess, models.RolePassenger)
		if err != nil {
			return err
		}
		origin = strings.TrimSpace(origin)
		destination = strings.TrimSpace(destination)
		if origin == "" || destination == "" || !offerPrice.IsPositive() {
			return fail(ErrInvalidInput, EntityRide, "")
		}
		if active, ok := s.activeRideOf(p); ok {
			return fail(ErrRideAlreadyActive, EntityRide, active.ID)
		}

		r := &models.Ride{
			ID:            s.ids.NewID(),
			RequesterID:   p.ID,
			RequesterName: p.Name,
			Origin:        origin,
			Destination:   destination,
			OfferPrice:    offerPrice,
			Status:        models.RidePending,
			CreatedAt:     s.clock.Now(),
		}
		s.tables.SaveRide(r)
		s.postSystem(r.ID, fmt.Sprintf("Ride requested from %s to %s for %s", r.Origin, r.Destination, money(offerPrice)))
		s.emit(Event{Kind: EventRideCreated, RideID: r.ID, AccountID: p.ID})
		out = r.Clone()
		return nil
	})
	return out, err
}

// ConfirmRide is the driver's answer to an accepted offer. It is the only way
// a driver gets assigned to a ride.
func (s *Store) ConfirmRide(sess *Session, rideID string) (models.Ride, error) {
	var out models.Ride
	err := s.run("confirm_ride", func() error {
		d, err := s.actorWithRole(sess, models.RoleDriver)
		if err != nil {
			return err
		}
		r, err := s.ride(rideID)
		if err != nil {
			return err
		}
		if r.Status.Terminal() {
			return fail(ErrInvalidState, EntityRide, r.ID)
		}
		var accepted *models.Offer
		for _, o := range s.tables.OffersForRide(r.ID) {
			if o.DriverID == d.ID && o.Status == models.OfferAccepted {
				accepted = o
				break
			}
		}
		if accepted == nil {
			return fail(ErrNoAcceptedOffer, EntityRide, r.ID)
		}
		if r.Status != models.RideNegotiating {
			return fail(ErrInvalidState, EntityRide, r.ID)
		}

		final := accepted.Amount
		vehicle := accepted.Vehicle
		if d.Vehicle != nil {
			vehicle = *d.Vehicle
		}
		r.Status = models.RideConfirmed
		r.DriverID = d.ID
		r.DriverName = d.Name
		r.Vehicle = &vehicle
		r.FinalPrice = &final

		s.postSystem(r.ID, fmt.Sprintf("Ride confirmed! Driver %s (%s) is on the way.", d.Name, vehicle.Plate))
		s.emit(Event{Kind: EventRideConfirmed, RideID: r.ID, OfferID: accepted.ID, AccountID: d.ID})
		out = r.Clone()
		return nil
	})
	return out, err
}

// CancelRide may be called by the requester, the confirmed driver or an admin
// while the ride is not yet terminal.
func (s *Store) CancelRide(sess *Session, rideID string) (models.Ride, error) {
	var out models.Ride
	err := s.run("cancel_ride", func() error {
		a, err := s.actor(sess)
		if err != nil {
			return err
		}
		r, err := s.ride(rideID)
		if err != nil {
			return err
		}
		allowed := a.Role == models.RoleAdmin ||
			a.ID == r.RequesterID ||
			(r.DriverID != "" && a.ID == r.DriverID)
		if !allowed {
			return fail(ErrForbidden, EntityRide, r.ID)
		}
		if r.Status.Terminal() {
			return fail(ErrInvalidState, EntityRide, r.ID)
		}

		r.Status = models.RideCancelled
		s.postSystem(r.ID, fmt.Sprintf("Ride cancelled by %s", a.Name))
		s.emit(Event{Kind: EventRideCancelled, RideID: r.ID, AccountID: a.ID})
		out = r.Clone()
		return nil
	})
	return out, err
}

// CompleteRide closes a confirmed ride. It is driven by the trip-completion
// signal rather than by a session.
func (s *Store) CompleteRide(rideID string) (models.Ride, error) {
	var out models.Ride
	err := s.run("complete_ride", func() error {
		r, err := s.ride(rideID)
		if err != nil {
			return err
		}
		if r.Status != models.RideConfirmed {
			return fail(ErrInvalidState, EntityRide, r.ID)
		}

		r.Status = models.RideCompleted
		s.postSystem(r.ID, fmt.Sprintf("Ride completed. Final price %s.", money(*r.FinalPrice)))
		s.emit(Event{Kind: EventRideCompleted, RideID: r.ID, AccountID: r.DriverID})
		out = r.Clone()
		return nil
	})
	return out, err
}

// activeRideOf returns the ride currently occupying a, if any: the
// passenger's own open or confirmed ride, or the driver's confirmed ride.
func (s *Store) activeRideOf(a *models.Account) (*models.Ride, bool) {
	for _, r := range s.tables.Rides() {
		switch a.Role {
		case models.RolePassenger:
			if r.RequesterID == a.ID && r.Status.Active() {
				return r, true
			}
		case models.RoleDriver:
			if r.DriverID == a.ID && r.Status == models.RideConfirmed {
				return r, true
			}
		}
	}
	return nil, false
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }
