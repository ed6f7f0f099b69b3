package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Donation is a ma'aser payment to a charity.
type Donation struct {
	ID          string          `json:"id"`
	UserID      string          `json:"-"`
	Date        Date            `json:"date"`
	CharityName string          `json:"charity_name"`
	Amount      decimal.Decimal `json:"amount"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Charity is an entry of the static charity catalog.
type Charity struct {
	ID            string `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	Category      string `json:"category" yaml:"category"`
	IsRecommended bool   `json:"is_recommended" yaml:"is_recommended"`
}
