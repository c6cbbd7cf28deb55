package negotiation

import (
	"sync"

	"github.com/example/ride-negotiation/internal/models"
)

// Session is the acting identity of one client. It holds at most one account
// id, has no expiry, and is passed explicitly to every command. A nil
// *Session behaves as an anonymous one.
type Session struct {
	mu        sync.Mutex
	accountID string
}

func NewSession() *Session { return &Session{} }

func (s *Session) SetActive(a models.Account) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.accountID = a.ID
	s.mu.Unlock()
}

func (s *Session) ClearActive() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.accountID = ""
	s.mu.Unlock()
}

func (s *Session) AccountID() (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountID, s.accountID != ""
}
