package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Purchaser is the resolved identity a ticket is issued to. Guests are
// created on first contact with an unknown email.
type Purchaser struct {
	bun.BaseModel `bun:"table:purchasers"`

	ID        string    `bun:"id,pk" json:"id"`
	Email     string    `bun:"email,unique,notnull" json:"email"`
	FullName  string    `bun:"full_name" json:"full_name,omitempty"`
	Guest     bool      `bun:"guest,notnull" json:"guest"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}
