package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          string    `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description" json:"description,omitempty"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}

type Session struct {
	bun.BaseModel `bun:"table:sessions"`

	ID        string    `bun:"id,pk" json:"id"`
	EventID   string    `bun:"event_id,notnull" json:"event_id"`
	Name      string    `bun:"name" json:"name"`
	StartsAt  time.Time `bun:"starts_at,notnull" json:"starts_at"`
	EndsAt    time.Time `bun:"ends_at,notnull" json:"ends_at"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Zone is a priced capacity pool within one session. Capacity is treated as
// immutable once tickets exist against the zone; price changes never affect
// already issued tickets.
type Zone struct {
	bun.BaseModel `bun:"table:zones"`

	ID        string          `bun:"id,pk" json:"id"`
	SessionID string          `bun:"session_id,notnull" json:"session_id"`
	Name      string          `bun:"name,notnull" json:"name"`
	Capacity  int             `bun:"capacity,notnull" json:"capacity"`
	Price     decimal.Decimal `bun:"price,notnull" json:"price"`
	CreatedAt time.Time       `bun:"created_at,notnull" json:"created_at"`
}
