package storage

import (
	"sort"
	"strings"

	"github.com/example/ride-negotiation/internal/models"
)

// Memory holds the entity tables of the negotiation store. It enforces no
// business rules and does no locking: the owner serializes access.
// Pointers handed out alias the stored records.
type Memory struct {
	accounts   map[string]*models.Account
	credential map[credKey]string

	rides        map[string]*models.Ride
	offers       map[string]*models.Offer
	offersByRide map[string][]string
	messages     map[string][]models.Message
}

type credKey struct {
	email string
	role  models.Role
}

func NewMemory() *Memory {
	return &Memory{
		accounts:     make(map[string]*models.Account),
		credential:   make(map[credKey]string),
		rides:        make(map[string]*models.Ride),
		offers:       make(map[string]*models.Offer),
		offersByRide: make(map[string][]string),
		messages:     make(map[string][]models.Message),
	}
}

// NormalizeEmail is the form emails are indexed under.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *Memory) SaveAccount(a *models.Account) {
	m.accounts[a.ID] = a
	m.credential[credKey{NormalizeEmail(a.Email), a.Role}] = a.ID
}

func (m *Memory) Account(id string) (*models.Account, bool) {
	a, ok := m.accounts[id]
	return a, ok
}

func (m *Memory) AccountByCredential(email string, role models.Role) (*models.Account, bool) {
	id, ok := m.credential[credKey{NormalizeEmail(email), role}]
	if !ok {
		return nil, false
	}
	return m.Account(id)
}

// Accounts returns every account ordered by name, then id.
func (m *Memory) Accounts() []*models.Account {
	out := make([]*models.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Memory) SaveRide(r *models.Ride) {
	m.rides[r.ID] = r
}

func (m *Memory) Ride(id string) (*models.Ride, bool) {
	r, ok := m.rides[id]
	return r, ok
}

// Rides returns every ride, newest first.
func (m *Memory) Rides() []*models.Ride {
	out := make([]*models.Ride, 0, len(m.rides))
	for _, r := range m.rides {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *Memory) SaveOffer(o *models.Offer) {
	if _, ok := m.offers[o.ID]; !ok {
		m.offersByRide[o.RideID] = append(m.offersByRide[o.RideID], o.ID)
	}
	m.offers[o.ID] = o
}

func (m *Memory) Offer(id string) (*models.Offer, bool) {
	o, ok := m.offers[id]
	return o, ok
}

// OffersForRide returns a ride's offers in submission order.
func (m *Memory) OffersForRide(rideID string) []*models.Offer {
	ids := m.offersByRide[rideID]
	out := make([]*models.Offer, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.offers[id])
	}
	return out
}

func (m *Memory) AppendMessage(msg models.Message) {
	m.messages[msg.RideID] = append(m.messages[msg.RideID], msg)
}

// MessagesForRide returns a copy of the ride's log in append order.
func (m *Memory) MessagesForRide(rideID string) []models.Message {
	src := m.messages[rideID]
	out := make([]models.Message, len(src))
	copy(out, src)
	return out
}

// DeleteRide removes a ride together with its offers and messages.
func (m *Memory) DeleteRide(id string) bool {
	if _, ok := m.rides[id]; !ok {
		return false
	}
	for _, oid := range m.offersByRide[id] {
		delete(m.offers, oid)
	}
	delete(m.offersByRide, id)
	delete(m.messages, id)
	delete(m.rides, id)
	return true
}
