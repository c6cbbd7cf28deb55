package negotiation

import (
	"github.com/shopspring/decimal"

	"github.com/example/ride-negotiation/internal/models"
)

func (s *Store) ListAccounts() []models.Account {
	var out []models.Account
	s.read(func() {
		accounts := s.tables.Accounts()
		out = make([]models.Account, 0, len(accounts))
		for _, a := range accounts {
			out = append(out, a.Clone())
		}
	})
	return out
}

func (s *Store) Account(id string) (models.Account, error) {
	var (
		out models.Account
		err error
	)
	s.read(func() {
		a, ok := s.tables.Account(id)
		if !ok {
			err = fail(ErrNotFound, EntityAccount, id)
			return
		}
		out = a.Clone()
	})
	return out, err
}

// ListRides returns every ride, newest first.
func (s *Store) ListRides() []models.Ride {
	return s.filterRides(func(*models.Ride) bool { return true })
}

// OpenRides returns the rides drivers can still bid on, newest first.
func (s *Store) OpenRides() []models.Ride {
	return s.filterRides(func(r *models.Ride) bool { return r.Status.Open() })
}

func (s *Store) Ride(id string) (models.Ride, error) {
	var (
		out models.Ride
		err error
	)
	s.read(func() {
		var r *models.Ride
		if r, err = s.ride(id); err == nil {
			out = r.Clone()
		}
	})
	return out, err
}

// RidesForAccount returns the rides an account requested, was assigned to or
// bid on, newest first.
func (s *Store) RidesForAccount(accountID string) ([]models.Ride, error) {
	var (
		out []models.Ride
		err error
	)
	s.read(func() {
		if _, ok := s.tables.Account(accountID); !ok {
			err = fail(ErrNotFound, EntityAccount, accountID)
			return
		}
		for _, r := range s.tables.Rides() {
			if r.RequesterID == accountID || r.DriverID == accountID || s.hasOfferFrom(r.ID, accountID) {
				out = append(out, r.Clone())
			}
		}
	})
	return out, err
}

func (s *Store) OffersForRide(rideID string) ([]models.Offer, error) {
	var (
		out []models.Offer
		err error
	)
	s.read(func() {
		if _, err = s.ride(rideID); err != nil {
			return
		}
		offers := s.tables.OffersForRide(rideID)
		out = make([]models.Offer, 0, len(offers))
		for _, o := range offers {
			out = append(out, *o)
		}
	})
	return out, err
}

// OffersVisibleTo returns the offers a participant of the ride may see. A
// driver sees only their own bid until the ride is confirmed or completed.
func (s *Store) OffersVisibleTo(sess *Session, rideID string) ([]models.Offer, error) {
	var (
		out []models.Offer
		err error
	)
	s.read(func() {
		var (
			a *models.Account
			r *models.Ride
		)
		if a, r, err = s.participant(sess, rideID); err != nil {
			return
		}
		settled := r.Status == models.RideConfirmed || r.Status == models.RideCompleted
		out = []models.Offer{}
		for _, o := range s.tables.OffersForRide(r.ID) {
			if a.Role == models.RoleDriver && o.DriverID != a.ID && !settled {
				continue
			}
			out = append(out, *o)
		}
	})
	return out, err
}

// ActiveRideFor returns the passenger's pending, negotiating or confirmed
// ride, or the driver's confirmed ride. ok is false when there is none.
func (s *Store) ActiveRideFor(accountID string) (ride models.Ride, ok bool, err error) {
	s.read(func() {
		a, found := s.tables.Account(accountID)
		if !found {
			err = fail(ErrNotFound, EntityAccount, accountID)
			return
		}
		var r *models.Ride
		if r, ok = s.activeRideOf(a); ok {
			ride = r.Clone()
		}
	})
	return ride, ok, err
}

// Stats summarizes the store for the admin dashboard. Revenue counts the
// final price of confirmed and completed rides.
func (s *Store) Stats() models.Stats {
	var st models.Stats
	st.Revenue = decimal.Zero
	s.read(func() {
		for _, a := range s.tables.Accounts() {
			if a.Role != models.RoleAdmin {
				st.Users++
			}
		}
		for _, r := range s.tables.Rides() {
			if r.Status.Active() {
				st.ActiveRides++
			}
			if (r.Status == models.RideConfirmed || r.Status == models.RideCompleted) && r.FinalPrice != nil {
				st.Revenue = st.Revenue.Add(*r.FinalPrice)
			}
		}
	})
	return st
}

func (s *Store) filterRides(keep func(*models.Ride) bool) []models.Ride {
	var out []models.Ride
	s.read(func() {
		for _, r := range s.tables.Rides() {
			if keep(r) {
				out = append(out, r.Clone())
			}
		}
	})
	return out
}

func (s *Store) hasOfferFrom(rideID, driverID string) bool {
	for _, o := range s.tables.OffersForRide(rideID) {
		if o.DriverID == driverID {
			return true
		}
	}
	return false
}
