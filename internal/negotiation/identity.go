package negotiation

import (
	"strings"

	"github.com/example/ride-negotiation/internal/models"
)

// RegisterAccount adds a passenger, driver or admin account. Emails are
// unique per role only, so one person may hold a passenger and a driver
// account under the same address. Creating an admin takes an admin session.
func (s *Store) RegisterAccount(sess *Session, acc models.Account) (models.Account, error) {
	var out models.Account
	err := s.run("register_account", func() error {
		acc.Name = strings.TrimSpace(acc.Name)
		acc.Email = strings.TrimSpace(acc.Email)
		acc.Phone = strings.TrimSpace(acc.Phone)
		if acc.Name == "" || acc.Email == "" || !acc.Role.Valid() {
			return fail(ErrInvalidInput, EntityAccount, "")
		}
		switch acc.Role {
		case models.RoleDriver:
			v, ok := cleanVehicle(acc.Vehicle)
			if !ok {
				return fail(ErrInvalidInput, EntityAccount, "")
			}
			acc.Vehicle = &v
		case models.RoleAdmin:
			if _, err := s.actorWithRole(sess, models.RoleAdmin); err != nil {
				return err
			}
			acc.Vehicle = nil
		default:
			acc.Vehicle = nil
		}
		if existing, dup := s.tables.AccountByCredential(acc.Email, acc.Role); dup {
			return fail(ErrDuplicateIdentity, EntityAccount, existing.ID)
		}

		acc.ID = s.ids.NewID()
		acc.Blocked = false
		stored := acc.Clone()
		s.tables.SaveAccount(&stored)
		s.emit(Event{Kind: EventAccountRegistered, AccountID: acc.ID})
		out = stored.Clone()
		return nil
	})
	return out, err
}

// Seed loads fixed accounts, keeping their ids when set. Only uniqueness of
// id and (email, role) is checked.
func (s *Store) Seed(accounts ...models.Account) error {
	return s.run("seed", func() error {
		for _, acc := range accounts {
			if !acc.Role.Valid() {
				return fail(ErrInvalidInput, EntityAccount, acc.ID)
			}
			if acc.ID == "" {
				acc.ID = s.ids.NewID()
			}
			if _, dup := s.tables.Account(acc.ID); dup {
				return fail(ErrDuplicateIdentity, EntityAccount, acc.ID)
			}
			if existing, dup := s.tables.AccountByCredential(acc.Email, acc.Role); dup {
				return fail(ErrDuplicateIdentity, EntityAccount, existing.ID)
			}
			stored := acc.Clone()
			s.tables.SaveAccount(&stored)
		}
		return nil
	})
}

// Authenticate looks up the exact (email, role) pair and makes the account
// the session's active identity.
func (s *Store) Authenticate(sess *Session, email string, role models.Role) (models.Account, error) {
	var out models.Account
	err := s.run("authenticate", func() error {
		a, ok := s.tables.AccountByCredential(email, role)
		if !ok {
			return fail(ErrNotFound, EntityAccount, "")
		}
		if a.Blocked {
			return fail(ErrAccountBlocked, EntityAccount, a.ID)
		}
		out = a.Clone()
		return nil
	})
	if err != nil {
		return models.Account{}, err
	}
	sess.SetActive(out)
	return out, nil
}

func (s *Store) Logout(sess *Session) {
	sess.ClearActive()
}

// SetBlocked flips the blocked flag of an account. Setting the current value
// again succeeds without touching state.
func (s *Store) SetBlocked(sess *Session, accountID string, blocked bool) error {
	return s.run("set_blocked", func() error {
		admin, err := s.actorWithRole(sess, models.RoleAdmin)
		if err != nil {
			return err
		}
		a, ok := s.tables.Account(accountID)
		if !ok {
			return fail(ErrNotFound, EntityAccount, accountID)
		}
		if a.Blocked == blocked {
			return nil
		}
		a.Blocked = blocked
		kind := EventAccountUnblocked
		if blocked {
			kind = EventAccountBlocked
		}
		s.emit(Event{Kind: kind, AccountID: a.ID})
		s.logger.Info("account block flag changed", "account_id", a.ID, "blocked", blocked, "admin_id", admin.ID)
		return nil
	})
}

// UpdateVehicle replaces the calling driver's vehicle details. Offers already
// submitted keep the vehicle they were made with.
func (s *Store) UpdateVehicle(sess *Session, v models.Vehicle) (models.Account, error) {
	var out models.Account
	err := s.run("update_vehicle", func() error {
		a, err := s.actorWithRole(sess, models.RoleDriver)
		if err != nil {
			return err
		}
		clean, ok := cleanVehicle(&v)
		if !ok {
			return fail(ErrInvalidInput, EntityAccount, a.ID)
		}
		a.Vehicle = &clean
		s.emit(Event{Kind: EventVehicleUpdated, AccountID: a.ID})
		out = a.Clone()
		return nil
	})
	return out, err
}

func cleanVehicle(v *models.Vehicle) (models.Vehicle, bool) {
	if v == nil {
		return models.Vehicle{}, false
	}
	out := models.Vehicle{Model: strings.TrimSpace(v.Model), Plate: strings.TrimSpace(v.Plate)}
	return out, out.Model != "" && out.Plate != ""
}
