package httpapi

import (
	"sync"

	"github.com/google/uuid"

	"github.com/example/ride-negotiation/internal/negotiation"
)

// sessionTable maps opaque client tokens to store sessions. An account holds
// one token at a time: logging in again revokes the previous one. Entries
// otherwise live until logout.
type sessionTable struct {
	mu        sync.RWMutex
	byID      map[string]*negotiation.Session
	byAccount map[string]string
}

func newSessionTable() *sessionTable {
	return &sessionTable{
		byID:      make(map[string]*negotiation.Session),
		byAccount: make(map[string]string),
	}
}

func (t *sessionTable) add(accountID string, sess *negotiation.Session) string {
	id := uuid.NewString()
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.byAccount[accountID]; ok {
		delete(t.byID, prev)
	}
	t.byID[id] = sess
	t.byAccount[accountID] = id
	return id
}

func (t *sessionTable) get(id string) *negotiation.Session {
	if id == "" {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byID[id]
}

func (t *sessionTable) remove(id string) (*negotiation.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sess, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	delete(t.byID, id)
	if accountID, ok := sess.AccountID(); ok && t.byAccount[accountID] == id {
		delete(t.byAccount, accountID)
	}
	return sess, true
}

func (t *sessionTable) size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}
