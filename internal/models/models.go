package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePassenger, RoleDriver, RoleAdmin:
		return true
	}
	return false
}

type RideStatus string

const (
	RidePending     RideStatus = "pending"
	RideNegotiating RideStatus = "negotiating"
	RideConfirmed   RideStatus = "confirmed"
	RideCompleted   RideStatus = "completed"
	RideCancelled   RideStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s RideStatus) Terminal() bool {
	return s == RideCompleted || s == RideCancelled
}

// Active reports whether the ride still occupies its requester.
func (s RideStatus) Active() bool {
	return s == RidePending || s == RideNegotiating || s == RideConfirmed
}

// Open reports whether drivers may still bid and offers may be answered.
func (s RideStatus) Open() bool {
	return s == RidePending || s == RideNegotiating
}

type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
)

type Vehicle struct {
	Model string `json:"model"`
	Plate string `json:"plate"`
}

type Account struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Role    Role     `json:"role"`
	Phone   string   `json:"phone,omitempty"`
	Vehicle *Vehicle `json:"vehicle,omitempty"`
	Blocked bool     `json:"blocked"`
}

type Ride struct {
	ID            string           `json:"id"`
	RequesterID   string           `json:"requester_id"`
	RequesterName string           `json:"requester_name"`
	Origin        string           `json:"origin"`
	Destination   string           `json:"destination"`
	OfferPrice    decimal.Decimal  `json:"offer_price"`
	Status        RideStatus       `json:"status"`
	DriverID      string           `json:"driver_id,omitempty"`
	DriverName    string           `json:"driver_name,omitempty"`
	Vehicle       *Vehicle         `json:"vehicle,omitempty"`
	FinalPrice    *decimal.Decimal `json:"final_price,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

type Offer struct {
	ID         string          `json:"id"`
	RideID     string          `json:"ride_id"`
	DriverID   string          `json:"driver_id"`
	DriverName string          `json:"driver_name"`
	Vehicle    Vehicle         `json:"vehicle"`
	Amount     decimal.Decimal `json:"amount"`
	Status     OfferStatus     `json:"status"`
}

// SystemSenderID marks messages generated by the store itself.
const SystemSenderID = "system"

type Message struct {
	ID         string    `json:"id"`
	RideID     string    `json:"ride_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	System     bool      `json:"system"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	Users       int             `json:"users"`
	ActiveRides int             `json:"active_rides"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// Clone returns a copy that shares no pointers with a.
func (a Account) Clone() Account {
	if a.Vehicle != nil {
		v := *a.Vehicle
		a.Vehicle = &v
	}
	return a
}

// Clone returns a copy that shares no pointers with r.
func (r Ride) Clone() Ride {
	if r.Vehicle != nil {
		v := *r.Vehicle
		r.Vehicle = &v
	}
	if r.FinalPrice != nil {
		p := *r.FinalPrice
		r.FinalPrice = &p
	}
	return r
}
