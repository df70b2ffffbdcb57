package models

import "time"

// TrendDirection classifies spend movement across the aggregation window
type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

// FinancialStory is the aggregated, ephemeral snapshot of a user's
// financial activity used to ground script generation. It is recomputed
// per generation call and never persisted as-is. A sparse story (empty
// sub-sections) is valid; only an unreachable data source is an error.
type FinancialStory struct {
	UserID          string          `json:"user_id"`
	WindowStart     time.Time       `json:"window_start"`
	WindowEnd       time.Time       `json:"window_end"`
	WindowDays      int             `json:"window_days"`
	TotalSpent      float64         `json:"total_spent"`
	AvgDailySpend   float64         `json:"avg_daily_spend"`
	TxnCount        int             `json:"transaction_count"`
	TopCategories   []CategorySpend `json:"top_categories"`
	Trend           TrendDirection  `json:"trend"`
	TrendPercent    float64         `json:"trend_percent"`
	Goals           []GoalSnapshot  `json:"goals"`
	AutomationCount int             `json:"automation_count"`
	MerchantCount   int             `json:"merchant_count"`
}

// CategorySpend is one category's aggregated spend within the window
type CategorySpend struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// GoalSnapshot captures one goal's progress at aggregation time.
// Progress may exceed 100 for over-funded goals; that is allowed.
type GoalSnapshot struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	TargetAmount    float64 `json:"target_amount"`
	CurrentAmount   float64 `json:"current_amount"`
	ProgressPercent float64 `json:"progress_percent"`
	Completed       bool    `json:"completed"`
}

// TopCategory returns the highest-spend category, or empty when the
// window had no transactions
func (s *FinancialStory) TopCategory() CategorySpend {
	if len(s.TopCategories) == 0 {
		return CategorySpend{}
	}
	return s.TopCategories[0]
}

// BestGoal returns the goal with the highest progress percentage
func (s *FinancialStory) BestGoal() (GoalSnapshot, bool) {
	if len(s.Goals) == 0 {
		return GoalSnapshot{}, false
	}
	best := s.Goals[0]
	for _, g := range s.Goals[1:] {
		if g.ProgressPercent > best.ProgressPercent {
			best = g
		}
	}
	return best, true
}

// HasTransactions reports whether the window contained any spend activity
func (s *FinancialStory) HasTransactions() bool {
	return s.TxnCount > 0
}
