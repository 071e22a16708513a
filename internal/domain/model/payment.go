package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending"     // intent persisted, not yet registered with the gateway
	PaymentStatusInitialized PaymentStatus = "initialized" // gateway token obtained; buyer redirected
	PaymentStatusCompleted   PaymentStatus = "completed"   // settlement verified OK at the gateway
	PaymentStatusFailed      PaymentStatus = "failed"      // registration failed or verification rejected
)

// IsTerminal reports whether no further transition may leave the status.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// PaymentIntent records one checkout attempt against the external gateway.
// SessionID is minted by us before registration and is the only correlation
// key used for gateway calls and inbound webhooks; the gateway's own
// identifiers (Token, OrderID) are not known until later.
type PaymentIntent struct {
	ID          string // UUID
	AccountID   string // owning developer account
	Email       string // buyer email, sent to the gateway and used for confirmation
	Amount      int64  // grosze; never a float
	Currency    string // fixed "PLN" for this protocol version
	Plan        PlanType
	Period      BillingPeriod
	SessionID   string // ULID, unique across all intents
	Token       string // gateway transaction token, set after registration
	OrderID     string // gateway order id, set at settlement
	Status      PaymentStatus
	CreatedAt   time.Time
	CompletedAt *time.Time // set when completed
}

// Notification is the parsed form of the gateway's settlement webhook.
type Notification struct {
	SessionID string
	OrderID   string
	Amount    int64
	Currency  string
}
