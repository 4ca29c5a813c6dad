package types

import "time"

// Payment records a payment intent created with the payment gateway.
type Payment struct {
	ID int64 `json:"id" db:"id"`

	// PaymentIntentID is the gateway identifier of the intent. Unique.
	PaymentIntentID string `json:"paymentIntentId" db:"payment_intent_id"`

	// Amount is expressed in the smallest currency unit (e.g. cents).
	Amount int64 `json:"amount" db:"amount"`

	Currency     string    `json:"currency" db:"currency"`
	ClientSecret string    `json:"clientSecret" db:"client_secret"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}
