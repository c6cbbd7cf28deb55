package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/example/ride-negotiation/internal/models"
	"github.com/example/ride-negotiation/internal/negotiation"
)

type loginRequest struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

type loginResponse struct {
	SessionID string         `json:"session_id"`
	Account   models.Account `json:"account"`
}

type blockRequest struct {
	Blocked bool `json:"blocked"`
}

type createRideRequest struct {
	Origin      string          `json:"origin"`
	Destination string          `json:"destination"`
	OfferPrice  decimal.Decimal `json:"offer_price"`
}

type offerRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type messageRequest struct {
	Text string `json:"text"`
}

type activeRideResponse struct {
	Active bool         `json:"active"`
	Ride   *models.Ride `json:"ride,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	ID    string `json:"id,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	sess := negotiation.NewSession()
	acc, err := s.store.Authenticate(sess, req.Email, req.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	id := s.sessions.add(acc.ID, sess)
	writeJSON(w, http.StatusCreated, loginResponse{SessionID: id, Account: acc})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.sessions.remove(r.Header.Get(sessionHeader)); ok {
		s.store.Logout(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var acc models.Account
	if !s.decode(w, r, &acc) {
		return
	}
	out, err := s.store.RegisterAccount(s.session(r), acc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	if _, err := s.admin(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.store.ListAccounts())
}

func (s *Server) handleSetBlocked(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.store.SetBlocked(s.session(r), mux.Vars(r)["id"], req.Blocked); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateVehicle(w http.ResponseWriter, r *http.Request) {
	var v models.Vehicle
	if !s.decode(w, r, &v) {
		return
	}
	acc, err := s.store.UpdateVehicle(s.session(r), v)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *Server) handleAccountRides(w http.ResponseWriter, r *http.Request) {
	id, err := s.accountParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rides, err := s.store.RidesForAccount(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(rides))
}

func (s *Server) handleActiveRide(w http.ResponseWriter, r *http.Request) {
	id, err := s.accountParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ride, ok, err := s.store.ActiveRideFor(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := activeRideResponse{Active: ok}
	if ok {
		resp.Ride = &ride
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	var rides []models.Ride
	if r.URL.Query().Get("open") == "true" {
		rides = s.store.OpenRides()
	} else {
		rides = s.store.ListRides()
	}
	writeJSON(w, http.StatusOK, nonNil(rides))
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	var req createRideRequest
	if !s.decode(w, r, &req) {
		return
	}
	ride, err := s.store.CreateRide(s.session(r), req.Origin, req.Destination, req.OfferPrice)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ride)
}

func (s *Server) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ride, err := s.store.Ride(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	s.rideCommand(w, r, s.store.CancelRide)
}

func (s *Server) handleConfirmRide(w http.ResponseWriter, r *http.Request) {
	s.rideCommand(w, r, s.store.ConfirmRide)
}

// handleCompleteRide relays the trip-completion signal. Only the assigned
// driver or an admin may send it.
func (s *Server) handleCompleteRide(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	caller, err := s.caller(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ride, err := s.store.Ride(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if caller.Role != models.RoleAdmin && caller.ID != ride.DriverID {
		s.writeError(w, r, &negotiation.Error{Kind: negotiation.ErrForbidden, Entity: negotiation.EntityRide, ID: id})
		return
	}
	ride, err = s.store.CompleteRide(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) rideCommand(w http.ResponseWriter, r *http.Request, cmd func(*negotiation.Session, string) (models.Ride, error)) {
	ride, err := cmd(s.session(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	offers, err := s.store.OffersVisibleTo(s.session(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offers)
}

func (s *Server) handleSubmitOffer(w http.ResponseWriter, r *http.Request) {
	var req offerRequest
	if !s.decode(w, r, &req) {
		return
	}
	offer, err := s.store.SubmitOffer(s.session(r), mux.Vars(r)["id"], req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, offer)
}

func (s *Server) handleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	s.offerCommand(w, r, s.store.AcceptOffer)
}

func (s *Server) handleRejectOffer(w http.ResponseWriter, r *http.Request) {
	s.offerCommand(w, r, s.store.RejectOffer)
}

func (s *Server) offerCommand(w http.ResponseWriter, r *http.Request, cmd func(*negotiation.Session, string) (models.Offer, error)) {
	offer, err := cmd(s.session(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offer)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	seq, err := s.store.MessagesVisibleTo(s.session(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(slices.Collect(seq)))
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !s.decode(w, r, &req) {
		return
	}
	msg, err := s.store.PostMessage(s.session(r), mux.Vars(r)["id"], req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if _, err := s.admin(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.store.Stats())
}

// caller resolves the session to a live account for the checks the store
// leaves to its adapters.
func (s *Server) caller(r *http.Request) (models.Account, error) {
	id, ok := s.session(r).AccountID()
	if !ok {
		return models.Account{}, &negotiation.Error{Kind: negotiation.ErrForbidden, Entity: negotiation.EntityAccount}
	}
	acc, err := s.store.Account(id)
	if err != nil {
		return models.Account{}, &negotiation.Error{Kind: negotiation.ErrForbidden, Entity: negotiation.EntityAccount, ID: id}
	}
	if acc.Blocked {
		return models.Account{}, &negotiation.Error{Kind: negotiation.ErrAccountBlocked, Entity: negotiation.EntityAccount, ID: id}
	}
	return acc, nil
}

func (s *Server) admin(r *http.Request) (models.Account, error) {
	acc, err := s.caller(r)
	if err != nil {
		return acc, err
	}
	if acc.Role != models.RoleAdmin {
		return models.Account{}, &negotiation.Error{Kind: negotiation.ErrForbidden, Entity: negotiation.EntityAccount, ID: acc.ID}
	}
	return acc, nil
}

// accountParam reads {id}, where "me" stands for the caller's own account.
// Callers may only name themselves unless they are admins.
func (s *Server) accountParam(r *http.Request) (string, error) {
	acc, err := s.caller(r)
	if err != nil {
		return "", err
	}
	id := mux.Vars(r)["id"]
	switch {
	case id == "me", id == acc.ID:
		return acc.ID, nil
	case acc.Role == models.RoleAdmin:
		return id, nil
	default:
		return "", &negotiation.Error{Kind: negotiation.ErrForbidden, Entity: negotiation.EntityAccount, ID: id}
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: negotiation.KindName(negotiation.ErrInvalidInput)})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: negotiation.KindName(err)}
	var se *negotiation.Error
	if errors.As(err, &se) {
		resp.ID = se.ID
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err, "request_id", requestIDFromContext(r.Context()))
	}
	writeJSON(w, status, resp)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, negotiation.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, negotiation.ErrForbidden), errors.Is(err, negotiation.ErrAccountBlocked):
		return http.StatusForbidden
	case errors.Is(err, negotiation.ErrInvalidInput), errors.Is(err, negotiation.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, negotiation.ErrDuplicateIdentity),
		errors.Is(err, negotiation.ErrDuplicateOffer),
		errors.Is(err, negotiation.ErrRideAlreadyActive),
		errors.Is(err, negotiation.ErrInvalidState),
		errors.Is(err, negotiation.ErrNoAcceptedOffer):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
