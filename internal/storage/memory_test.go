package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ride-negotiation/internal/models"
)

func TestCredentialLookupIsCaseInsensitive(t *testing.T) {
	m := NewMemory()
	m.SaveAccount(&models.Account{ID: "a1", Email: "Maria@Email.com", Role: models.RolePassenger})

	a, ok := m.AccountByCredential("  maria@email.com ", models.RolePassenger)
	require.True(t, ok)
	assert.Equal(t, "a1", a.ID)

	_, ok = m.AccountByCredential("maria@email.com", models.RoleDriver)
	assert.False(t, ok)
}

func TestRidesNewestFirst(t *testing.T) {
	m := NewMemory()
	base := time.Unix(1000, 0)
	m.SaveRide(&models.Ride{ID: "old", CreatedAt: base})
	m.SaveRide(&models.Ride{ID: "new", CreatedAt: base.Add(time.Minute)})

	rides := m.Rides()
	require.Len(t, rides, 2)
	assert.Equal(t, "new", rides[0].ID)
	assert.Equal(t, "old", rides[1].ID)
}

func TestDeleteRideCascades(t *testing.T) {
	m := NewMemory()
	m.SaveRide(&models.Ride{ID: "r1"})
	m.SaveRide(&models.Ride{ID: "r2"})
	m.SaveOffer(&models.Offer{ID: "o1", RideID: "r1"})
	m.SaveOffer(&models.Offer{ID: "o2", RideID: "r2"})
	m.AppendMessage(models.Message{ID: "m1", RideID: "r1"})
	m.AppendMessage(models.Message{ID: "m2", RideID: "r2"})

	require.True(t, m.DeleteRide("r1"))
	assert.False(t, m.DeleteRide("r1"))

	_, ok := m.Offer("o1")
	assert.False(t, ok)
	assert.Empty(t, m.OffersForRide("r1"))
	assert.Empty(t, m.MessagesForRide("r1"))

	_, ok = m.Offer("o2")
	assert.True(t, ok)
	assert.Len(t, m.MessagesForRide("r2"), 1)
}

func TestSaveOfferTwiceKeepsSingleIndexEntry(t *testing.T) {
	m := NewMemory()
	o := &models.Offer{ID: "o1", RideID: "r1", Status: models.OfferPending}
	m.SaveOffer(o)
	o.Status = models.OfferAccepted
	m.SaveOffer(o)

	offers := m.OffersForRide("r1")
	require.Len(t, offers, 1)
	assert.Equal(t, models.OfferAccepted, offers[0].Status)
}
