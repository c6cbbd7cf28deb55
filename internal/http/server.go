package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-negotiation/internal/logging"
	"github.com/example/ride-negotiation/internal/negotiation"
)

const sessionHeader = "X-Session-ID"

type Server struct {
	store    *negotiation.Store
	sessions *sessionTable
	logger   *slog.Logger
	mux      *mux.Router
}

func NewServer(store *negotiation.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		store:    store,
		sessions: newSessionTable(),
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/sessions", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/sessions", s.handleLogout).Methods(http.MethodDelete)

	api.HandleFunc("/accounts", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	api.HandleFunc("/accounts/me/vehicle", s.handleUpdateVehicle).Methods(http.MethodPut)
	api.HandleFunc("/accounts/{id}/block", s.handleSetBlocked).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id}/rides", s.handleAccountRides).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id}/active-ride", s.handleActiveRide).Methods(http.MethodGet)

	api.HandleFunc("/rides", s.handleListRides).Methods(http.MethodGet)
	api.HandleFunc("/rides", s.handleCreateRide).Methods(http.MethodPost)
	api.HandleFunc("/rides/{id}", s.handleGetRide).Methods(http.MethodGet)
	api.HandleFunc("/rides/{id}/cancel", s.handleCancelRide).Methods(http.MethodPost)
	api.HandleFunc("/rides/{id}/confirm", s.handleConfirmRide).Methods(http.MethodPost)
	api.HandleFunc("/rides/{id}/complete", s.handleCompleteRide).Methods(http.MethodPost)
	api.HandleFunc("/rides/{id}/offers", s.handleListOffers).Methods(http.MethodGet)
	api.HandleFunc("/rides/{id}/offers", s.handleSubmitOffer).Methods(http.MethodPost)
	api.HandleFunc("/rides/{id}/messages", s.handleListMessages).Methods(http.MethodGet)
	api.HandleFunc("/rides/{id}/messages", s.handlePostMessage).Methods(http.MethodPost)

	api.HandleFunc("/offers/{id}/accept", s.handleAcceptOffer).Methods(http.MethodPost)
	api.HandleFunc("/offers/{id}/reject", s.handleRejectOffer).Methods(http.MethodPost)

	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// session returns the caller's store session, or nil for anonymous callers
// and unknown ids.
func (s *Server) session(r *http.Request) *negotiation.Session {
	return s.sessions.get(r.Header.Get(sessionHeader))
}
