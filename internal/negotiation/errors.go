package negotiation

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is; every failure returned by the store
// wraps exactly one of these.
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicateIdentity = errors.New("duplicate identity")
	ErrDuplicateOffer    = errors.New("duplicate offer")
	ErrRideAlreadyActive = errors.New("ride already active")
	ErrNoAcceptedOffer   = errors.New("no accepted offer")
	ErrAccountBlocked    = errors.New("account blocked")
	ErrEmptyMessage      = errors.New("empty message")
)

type Entity string

const (
	EntityAccount Entity = "account"
	EntityRide    Entity = "ride"
	EntityOffer   Entity = "offer"
)

// Error carries the kind of a rejected command and the entity it tripped on.
type Error struct {
	Kind   error
	Entity Entity
	ID     string
}

func (e *Error) Error() string {
	if e.ID == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s %s", e.Kind, e.Entity, e.ID)
}

func (e *Error) Unwrap() error { return e.Kind }

func fail(kind error, entity Entity, id string) error {
	return &Error{Kind: kind, Entity: entity, ID: id}
}

var kindNames = []struct {
	kind error
	name string
}{
	{ErrNotFound, "not_found"},
	{ErrForbidden, "forbidden"},
	{ErrInvalidState, "invalid_state"},
	{ErrInvalidInput, "invalid_input"},
	{ErrDuplicateIdentity, "duplicate_identity"},
	{ErrDuplicateOffer, "duplicate_offer"},
	{ErrRideAlreadyActive, "ride_already_active"},
	{ErrNoAcceptedOffer, "no_accepted_offer"},
	{ErrAccountBlocked, "account_blocked"},
	{ErrEmptyMessage, "empty_message"},
}

// KindName returns a stable snake_case label for err, "internal" when err
// is not a store error and "" for nil.
func KindName(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kindNames {
		if errors.Is(err, k.kind) {
			return k.name
		}
	}
	return "internal"
}
