package models

import "time"

// Transaction is one financial record in the user's activity feed.
// Amounts are signed; the aggregator sums absolute values.
type Transaction struct {
	ID        string    `json:"id" badgerhold:"key"`
	UserID    string    `json:"user_id" badgerholdIndex:"UserID"`
	Amount    float64   `json:"amount"`
	Category  string    `json:"category"`
	Merchant  string    `json:"merchant"`
	Date      time.Time `json:"date"`
	Automated bool      `json:"automated"` // attributed to an automation rule
}

// Goal is a savings goal with a target and current balance
type Goal struct {
	ID            string     `json:"id" badgerhold:"key"`
	UserID        string     `json:"user_id" badgerholdIndex:"UserID"`
	Name          string     `json:"name"`
	TargetAmount  float64    `json:"target_amount"`
	CurrentAmount float64    `json:"current_amount"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Activity is one automation or engagement event on the user's account
type Activity struct {
	ID        string    `json:"id" badgerhold:"key"`
	UserID    string    `json:"user_id" badgerholdIndex:"UserID"`
	Type      string    `json:"type"` // "automation", "xp", "login", ...
	Automated bool      `json:"automated"`
	Date      time.Time `json:"date"`
}

// Profile holds the display identity used to personalize scripts
type Profile struct {
	UserID      string `json:"user_id" badgerhold:"key"`
	DisplayName string `json:"display_name"`
}
