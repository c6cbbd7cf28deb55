package negotiation

import (
	"slices"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/ride-negotiation/internal/clock"
	"github.com/example/ride-negotiation/internal/idgen"
	"github.com/example/ride-negotiation/internal/models"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store *Store
	clock *clock.Manual

	admin, passenger, driver1, driver2 *Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := clock.NewManual(t0)
	s := New(WithClock(clk), WithIDGenerator(idgen.NewSequence("id")))
	require.NoError(t, s.Seed(DemoAccounts()...))

	f := &fixture{store: s, clock: clk}
	f.admin = f.login(t, "admin@ride.local", models.RoleAdmin)
	f.passenger = f.login(t, "maria@email.com", models.RolePassenger)
	f.driver1 = f.login(t, "joao@email.com", models.RoleDriver)
	f.driver2 = f.login(t, "pedro@email.com", models.RoleDriver)
	return f
}

func (f *fixture) login(t *testing.T, email string, role models.Role) *Session {
	t.Helper()
	sess := NewSession()
	_, err := f.store.Authenticate(sess, email, role)
	require.NoError(t, err)
	return sess
}

func (f *fixture) createRide(t *testing.T, price int64) models.Ride {
	t.Helper()
	r, err := f.store.CreateRide(f.passenger, "Station", "Airport", decimal.NewFromInt(price))
	require.NoError(t, err)
	return r
}

func (f *fixture) ride(t *testing.T, id string) models.Ride {
	t.Helper()
	r, err := f.store.Ride(id)
	require.NoError(t, err)
	return r
}

func (f *fixture) messages(t *testing.T, rideID string) []models.Message {
	t.Helper()
	seq, err := f.store.MessagesForRide(rideID)
	require.NoError(t, err)
	return slices.Collect(seq)
}

func (f *fixture) offers(t *testing.T, rideID string) []models.Offer {
	t.Helper()
	offers, err := f.store.OffersForRide(rideID)
	require.NoError(t, err)
	return offers
}

func TestScenarioAcceptAndConfirm(t *testing.T) {
	f := newFixture(t)

	r := f.createRide(t, 20)
	assert.Equal(t, models.RidePending, r.Status)
	before := len(f.messages(t, r.ID))

	o, err := f.store.SubmitOffer(f.driver1, r.ID, decimal.NewFromInt(20))
	require.NoError(t, err)
	assert.Equal(t, models.RideNegotiating, f.ride(t, r.ID).Status)

	msgs := f.messages(t, r.ID)
	require.Len(t, msgs, before+1)
	last := msgs[len(msgs)-1]
	assert.True(t, last.System)
	assert.Equal(t, models.SystemSenderID, last.SenderID)
	assert.Contains(t, last.Text, "João Souza")
	assert.Contains(t, last.Text, "20.00")

	accepted, err := f.store.AcceptOffer(f.passenger, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferAccepted, accepted.Status)
	assert.Equal(t, models.RideNegotiating, f.ride(t, r.ID).Status)

	confirmed, err := f.store.ConfirmRide(f.driver1, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideConfirmed, confirmed.Status)
	assert.Equal(t, "d1", confirmed.DriverID)
	assert.Equal(t, "João Souza", confirmed.DriverName)
	require.NotNil(t, confirmed.FinalPrice)
	assert.True(t, confirmed.FinalPrice.Equal(decimal.NewFromInt(20)))
	require.NotNil(t, confirmed.Vehicle)
	assert.Equal(t, "ABC-1234", confirmed.Vehicle.Plate)

	done, err := f.store.CompleteRide(r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideCompleted, done.Status)
}

func TestScenarioCancelPendingThenBid(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)

	cancelled, err := f.store.CancelRide(f.passenger, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideCancelled, cancelled.Status)

	_, err = f.store.SubmitOffer(f.driver1, r.ID, decimal.NewFromInt(20))
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, f.offers(t, r.ID))
}

func TestScenarioTwoBidsRejectOne(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)

	o1, err := f.store.SubmitOffer(f.driver1, r.ID, decimal.NewFromInt(15))
	require.NoError(t, err)
	assert.Equal(t, models.RideNegotiating, f.ride(t, r.ID).Status)

	o2, err := f.store.SubmitOffer(f.driver2, r.ID, decimal.NewFromInt(18))
	require.NoError(t, err)
	assert.Equal(t, models.RideNegotiating, f.ride(t, r.ID).Status)

	offers := f.offers(t, r.ID)
	require.Len(t, offers, 2)
	assert.Equal(t, models.OfferPending, offers[0].Status)
	assert.Equal(t, models.OfferPending, offers[1].Status)

	_, err = f.store.RejectOffer(f.passenger, o1.ID)
	require.NoError(t, err)

	offers = f.offers(t, r.ID)
	assert.Equal(t, models.OfferRejected, offers[0].Status)
	assert.Equal(t, o2.ID, offers[1].ID)
	assert.Equal(t, models.OfferPending, offers[1].Status)
	assert.Equal(t, models.RideNegotiating, f.ride(t, r.ID).Status)
}

func TestScenarioConfirmByWrongCaller(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)
	o, err := f.store.SubmitOffer(f.driver1, r.ID, decimal.NewFromInt(20))
	require.NoError(t, err)
	_, err = f.store.AcceptOffer(f.passenger, o.ID)
	require.NoError(t, err)
	msgs := len(f.messages(t, r.ID))

	for name, sess := range map[string]*Session{
		"anonymous": NewSession(),
		"nil":       nil,
		"passenger": f.passenger,
		"admin":     f.admin,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.store.ConfirmRide(sess, r.ID)
			assert.ErrorIs(t, err, ErrForbidden)
		})
	}

	_, err = f.store.ConfirmRide(f.driver2, r.ID)
	assert.ErrorIs(t, err, ErrNoAcceptedOffer)

	got := f.ride(t, r.ID)
	assert.Equal(t, models.RideNegotiating, got.Status)
	assert.Empty(t, got.DriverID)
	assert.Nil(t, got.FinalPrice)
	assert.Len(t, f.messages(t, r.ID), msgs)
}

func TestSubmitOfferTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)

	first, err := f.store.SubmitOffer(f.driver1, r.ID, decimal.NewFromInt(20))
	require.NoError(t, err)

	_, err = f.store.SubmitOffer(f.driver1, r.ID, decimal.NewFromInt(25))
	require.ErrorIs(t, err, ErrDuplicateOffer)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, first.ID, se.ID)

	offers := f.offers(t, r.ID)
	require.Len(t, offers, 1)
	assert.True(t, offers[0].Amount.Equal(decimal.NewFromInt(20)))
}

func TestSubmitOfferValidation(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)

	_, err := f.store.SubmitOffer(f.passenger, r.ID, decimal.NewFromInt(20))
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.store.SubmitOffer(f.driver1, r.ID, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.store.SubmitOffer(f.driver1, r.ID, decimal.NewFromInt(-3))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.store.SubmitOffer(f.driver1, "missing", decimal.NewFromInt(20))
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, models.RidePending, f.ride(t, r.ID).Status)
}

func TestAcceptLeavesSiblingsAndFirstConfirmWins(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)
	o1, err := f.store.SubmitOffer(f.driver1, r.ID, decimal.NewFromInt(15))
	require.NoError(t, err)
	o2, err := f.store.SubmitOffer(f.driver2, r.ID, decimal.NewFromInt(18))
	require.NoError(t, err)

	_, err = f.store.AcceptOffer(f.passenger, o1.ID)
	require.NoError(t, err)
	offers := f.offers(t, r.ID)
	assert.Equal(t, models.OfferPending, offers[1].Status)

	_, err = f.store.AcceptOffer(f.passenger, o2.ID)
	require.NoError(t, err)
	offers = f.offers(t, r.ID)
	assert.Equal(t, models.OfferAccepted, offers[0].Status)
	assert.Equal(t, models.OfferAccepted, offers[1].Status)

	confirmed, err := f.store.ConfirmRide(f.driver2, r.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.FinalPrice.Equal(decimal.NewFromInt(18)))

	_, err = f.store.ConfirmRide(f.driver1, r.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, "d2", f.ride(t, r.ID).DriverID)

	// the ride is no longer open to answers or bids
	_, err = f.store.RejectOffer(f.passenger, o1.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestAnswerOfferGuards(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)
	o, err := f.store.SubmitOffer(f.driver1, r.ID, decimal.NewFromInt(20))
	require.NoError(t, err)

	_, err = f.store.AcceptOffer(f.driver1, o.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.store.RejectOffer(f.admin, o.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.store.AcceptOffer(f.passenger, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.store.RejectOffer(f.passenger, o.ID)
	require.NoError(t, err)
	_, err = f.store.AcceptOffer(f.passenger, o.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestConfirmWithoutAcceptedOffer(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)
	_, err := f.store.SubmitOffer(f.driver1, r.ID, decimal.NewFromInt(20))
	require.NoError(t, err)

	_, err = f.store.ConfirmRide(f.driver1, r.ID)
	assert.ErrorIs(t, err, ErrNoAcceptedOffer)
	_, err = f.store.ConfirmRide(f.driver2, r.ID)
	assert.ErrorIs(t, err, ErrNoAcceptedOffer)
	assert.Equal(t, models.RideNegotiating, f.ride(t, r.ID).Status)
}

func TestTerminalRidesStayTerminal(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)
	o, err := f.store.SubmitOffer(f.driver1, r.ID, decimal.NewFromInt(20))
	require.NoError(t, err)
	_, err = f.store.AcceptOffer(f.passenger, o.ID)
	require.NoError(t, err)
	_, err = f.store.CancelRide(f.driver2, r.ID)
	require.ErrorIs(t, err, ErrForbidden, "a bidding driver is not the confirmed driver")

	_, err = f.store.CancelRide(f.passenger, r.ID)
	require.NoError(t, err)
	msgs := len(f.messages(t, r.ID))

	_, err = f.store.CancelRide(f.passenger, r.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.store.ConfirmRide(f.driver1, r.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.store.CompleteRide(r.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.store.PostMessage(f.passenger, r.ID, "hello?")
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.store.SubmitOffer(f.driver2, r.ID, decimal.NewFromInt(30))
	assert.ErrorIs(t, err, ErrForbidden)

	assert.Equal(t, models.RideCancelled, f.ride(t, r.ID).Status)
	assert.Len(t, f.messages(t, r.ID), msgs)
}

func TestCancelByConfirmedDriverAndAdmin(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)
	o, err := f.store.SubmitOffer(f.driver1, r.ID, decimal.NewFromInt(20))
	require.NoError(t, err)
	_, err = f.store.AcceptOffer(f.passenger, o.ID)
	require.NoError(t, err)
	_, err = f.store.ConfirmRide(f.driver1, r.ID)
	require.NoError(t, err)

	cancelled, err := f.store.CancelRide(f.driver1, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RideCancelled, cancelled.Status)
	msgs := f.messages(t, r.ID)
	assert.Contains(t, msgs[len(msgs)-1].Text, "João Souza")

	r2 := f.createRide(t, 10)
	_, err = f.store.CancelRide(f.admin, r2.ID)
	require.NoError(t, err)
}

func TestCompleteRequiresConfirmed(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)
	_, err := f.store.CompleteRide(r.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.store.CompleteRide("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOneActiveRidePerPassenger(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)

	_, err := f.store.CreateRide(f.passenger, "Home", "Office", decimal.NewFromInt(12))
	require.ErrorIs(t, err, ErrRideAlreadyActive)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, r.ID, se.ID)
	assert.Len(t, f.store.ListRides(), 1)

	_, err = f.store.CancelRide(f.passenger, r.ID)
	require.NoError(t, err)
	_, err = f.store.CreateRide(f.passenger, "Home", "Office", decimal.NewFromInt(12))
	require.NoError(t, err)
}

func TestCreateRideValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.store.CreateRide(f.driver1, "A", "B", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.store.CreateRide(NewSession(), "A", "B", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.store.CreateRide(f.passenger, "  ", "B", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.store.CreateRide(f.passenger, "A", "B", decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, f.store.ListRides())
}

func TestEachTransitionAppendsOneSystemMessage(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)
	msgs := f.messages(t, r.ID)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Text, "Station")

	steps := []struct {
		name     string
		do       func() error
		contains string
	}{
		{"offer d1", func() error { _, err := f.store.SubmitOffer(f.driver1, r.ID, decimal.NewFromInt(15)); return err }, "João Souza"},
		{"offer d2", func() error { _, err := f.store.SubmitOffer(f.driver2, r.ID, decimal.NewFromInt(18)); return err }, "Pedro Santos"},
		{"reject d2", func() error { _, err := f.store.RejectOffer(f.passenger, f.offers(t, r.ID)[1].ID); return err }, "rejected"},
		{"accept d1", func() error { _, err := f.store.AcceptOffer(f.passenger, f.offers(t, r.ID)[0].ID); return err }, "accepted"},
		{"confirm", func() error { _, err := f.store.ConfirmRide(f.driver1, r.ID); return err }, "ABC-1234"},
		{"complete", func() error { _, err := f.store.CompleteRide(r.ID); return err }, "15.00"},
	}
	for _, step := range steps {
		before := len(f.messages(t, r.ID))
		require.NoError(t, step.do(), step.name)
		after := f.messages(t, r.ID)
		require.Len(t, after, before+1, step.name)
		last := after[len(after)-1]
		assert.True(t, last.System, step.name)
		assert.Contains(t, last.Text, step.contains, step.name)
	}
}

func TestPostMessage(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)

	_, err := f.store.PostMessage(f.driver1, r.ID, "hi")
	assert.ErrorIs(t, err, ErrForbidden, "driver without an offer is not a participant")
	_, err = f.store.PostMessage(NewSession(), r.ID, "hi")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.store.PostMessage(f.passenger, r.ID, "   \n")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = f.store.PostMessage(f.passenger, "missing", "hi")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.store.SubmitOffer(f.driver1, r.ID, decimal.NewFromInt(20))
	require.NoError(t, err)
	m, err := f.store.PostMessage(f.driver1, r.ID, "  on my way  ")
	require.NoError(t, err)
	assert.Equal(t, "on my way", m.Text)
	assert.False(t, m.System)
	assert.Equal(t, "d1", m.SenderID)

	_, err = f.store.PostMessage(f.admin, r.ID, "support here")
	require.NoError(t, err)
}

func TestMessagesOrderedAndRestartable(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)
	for i := 0; i < 3; i++ {
		f.clock.Advance(time.Second)
		_, err := f.store.PostMessage(f.passenger, r.ID, "ping")
		require.NoError(t, err)
	}
	// same instant as the previous line
	_, err := f.store.PostMessage(f.passenger, r.ID, "pong")
	require.NoError(t, err)

	seq, err := f.store.MessagesForRide(r.ID)
	require.NoError(t, err)
	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)

	require.Len(t, first, 5)
	for i := 1; i < len(first); i++ {
		assert.False(t, first[i].Timestamp.Before(first[i-1].Timestamp))
	}
	assert.Equal(t, "pong", first[4].Text)

	// early exit does not disturb later reads
	for range seq {
		break
	}
	assert.Len(t, slices.Collect(seq), 5)
}

func TestQueries(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)

	open := f.store.OpenRides()
	require.Len(t, open, 1)
	assert.Equal(t, r.ID, open[0].ID)

	active, ok, err := f.store.ActiveRideFor("u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, r.ID, active.ID)

	_, ok, err = f.store.ActiveRideFor("d1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = f.store.ActiveRideFor("nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	o, err := f.store.SubmitOffer(f.driver1, r.ID, decimal.NewFromInt(22))
	require.NoError(t, err)
	rides, err := f.store.RidesForAccount("d1")
	require.NoError(t, err)
	require.Len(t, rides, 1)
	rides, err = f.store.RidesForAccount("d2")
	require.NoError(t, err)
	assert.Empty(t, rides)

	_, err = f.store.AcceptOffer(f.passenger, o.ID)
	require.NoError(t, err)
	_, err = f.store.ConfirmRide(f.driver1, r.ID)
	require.NoError(t, err)

	assert.Empty(t, f.store.OpenRides())
	active, ok, err = f.store.ActiveRideFor("d1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, r.ID, active.ID)

	st := f.store.Stats()
	assert.Equal(t, 3, st.Users)
	assert.Equal(t, 1, st.ActiveRides)
	assert.True(t, st.Revenue.Equal(decimal.NewFromInt(22)))

	_, err = f.store.OffersForRide("missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.store.MessagesForRide("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotsAreDetached(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)
	o, err := f.store.SubmitOffer(f.driver1, r.ID, decimal.NewFromInt(20))
	require.NoError(t, err)
	_, err = f.store.AcceptOffer(f.passenger, o.ID)
	require.NoError(t, err)
	confirmed, err := f.store.ConfirmRide(f.driver1, r.ID)
	require.NoError(t, err)

	confirmed.Vehicle.Plate = "HACKED"
	*confirmed.FinalPrice = decimal.NewFromInt(1)

	got := f.ride(t, r.ID)
	assert.Equal(t, "ABC-1234", got.Vehicle.Plate)
	assert.True(t, got.FinalPrice.Equal(decimal.NewFromInt(20)))
}

func TestMessagesVisibleToParticipantsOnly(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)
	_, err := f.store.PostMessage(f.passenger, r.ID, "call me on 11999999999")
	require.NoError(t, err)

	_, err = f.store.MessagesVisibleTo(NewSession(), r.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.store.MessagesVisibleTo(f.driver2, r.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.store.MessagesVisibleTo(f.passenger, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, sess := range []*Session{f.passenger, f.admin} {
		seq, err := f.store.MessagesVisibleTo(sess, r.ID)
		require.NoError(t, err)
		assert.Len(t, slices.Collect(seq), 2)
	}

	_, err = f.store.SubmitOffer(f.driver2, r.ID, decimal.NewFromInt(20))
	require.NoError(t, err)
	_, err = f.store.MessagesVisibleTo(f.driver2, r.ID)
	assert.NoError(t, err)
}

func TestDriversSeeOnlyTheirOwnBidUntilConfirmed(t *testing.T) {
	f := newFixture(t)
	r := f.createRide(t, 20)
	o1, err := f.store.SubmitOffer(f.driver1, r.ID, decimal.NewFromInt(15))
	require.NoError(t, err)
	o2, err := f.store.SubmitOffer(f.driver2, r.ID, decimal.NewFromInt(18))
	require.NoError(t, err)

	_, err = f.store.OffersVisibleTo(nil, r.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	mine, err := f.store.OffersVisibleTo(f.driver2, r.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, o2.ID, mine[0].ID)

	all, err := f.store.OffersVisibleTo(f.passenger, r.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.store.AcceptOffer(f.passenger, o1.ID)
	require.NoError(t, err)
	_, err = f.store.ConfirmRide(f.driver1, r.ID)
	require.NoError(t, err)

	settled, err := f.store.OffersVisibleTo(f.driver2, r.ID)
	require.NoError(t, err)
	assert.Len(t, settled, 2)
}
