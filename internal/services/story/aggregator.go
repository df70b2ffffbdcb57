// Package story reduces a bounded window of a user's financial records
// into one FinancialStory snapshot used to ground script generation.
package story

import (
	"context"
	"sort"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/models"
)

const topCategoryLimit = 3

// Aggregator computes FinancialStory snapshots from the record store.
// Stories are ephemeral: recomputed per generation call, never persisted.
type Aggregator struct {
	records interfaces.RecordStorage
	logger  arbor.ILogger
}

// NewAggregator creates a new story aggregator
func NewAggregator(records interfaces.RecordStorage, logger arbor.ILogger) *Aggregator {
	return &Aggregator{
		records: records,
		logger:  logger,
	}
}

// Aggregate builds the story for a user over the trailing window. Missing
// data degrades to empty sub-sections; only an unreachable data source is
// an error, surfaced as AggregationError by the record store.
func (a *Aggregator) Aggregate(ctx context.Context, userID string, windowDays int) (*models.FinancialStory, error) {
	now := time.Now()
	windowStart := now.AddDate(0, 0, -windowDays)

	story := &models.FinancialStory{
		UserID:      userID,
		WindowStart: windowStart,
		WindowEnd:   now,
		WindowDays:  windowDays,
		Trend:       models.TrendStable,
	}

	txns, err := a.records.GetTransactions(ctx, userID, windowStart, now)
	if err != nil {
		return nil, err
	}
	a.applyTransactions(story, txns)

	goals, err := a.records.GetGoals(ctx, userID)
	if err != nil {
		return nil, err
	}
	story.Goals = snapshotGoals(goals)

	activities, err := a.records.GetActivities(ctx, userID, windowStart, now)
	if err != nil {
		return nil, err
	}
	for _, act := range activities {
		if act.Automated || act.Type == "automation" {
			story.AutomationCount++
		}
	}

	a.logger.Debug().
		Str("user_id", userID).
		Int("transactions", story.TxnCount).
		Int("goals", len(story.Goals)).
		Str("trend", string(story.Trend)).
		Msg("Aggregated financial story")

	return story, nil
}

func (a *Aggregator) applyTransactions(story *models.FinancialStory, txns []*models.Transaction) {
	if len(txns) == 0 {
		return
	}

	merchants := make(map[string]struct{})
	byCategory := make(map[string]float64)
	var categoryOrder []string

	for _, txn := range txns {
		amount := abs(txn.Amount)
		story.TotalSpent += amount
		story.TxnCount++

		if txn.Merchant != "" {
			merchants[txn.Merchant] = struct{}{}
		}
		if _, seen := byCategory[txn.Category]; !seen {
			categoryOrder = append(categoryOrder, txn.Category)
		}
		byCategory[txn.Category] += amount
	}

	if story.WindowDays > 0 {
		story.AvgDailySpend = story.TotalSpent / float64(story.WindowDays)
	}
	story.MerchantCount = len(merchants)
	story.TopCategories = topCategories(byCategory, categoryOrder)
	story.Trend, story.TrendPercent = spendTrend(txns)
}

// topCategories sorts categories by amount descending, ties broken by
// first-occurrence order, truncated to the top three.
func topCategories(byCategory map[string]float64, order []string) []models.CategorySpend {
	ranked := make([]models.CategorySpend, 0, len(order))
	for _, category := range order {
		ranked = append(ranked, models.CategorySpend{
			Category: category,
			Amount:   byCategory[category],
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Amount > ranked[j].Amount
	})

	if len(ranked) > topCategoryLimit {
		ranked = ranked[:topCategoryLimit]
	}
	return ranked
}

// spendTrend splits the window's transactions into two halves by count
// (sorted by date ascending) and compares the totals. Movement beyond
// ten percent in either direction classifies as up or down. An empty
// first half yields stable to avoid dividing by zero.
func spendTrend(txns []*models.Transaction) (models.TrendDirection, float64) {
	sorted := make([]*models.Transaction, len(txns))
	copy(sorted, txns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	mid := len(sorted) / 2
	var firstHalf, secondHalf float64
	for i, txn := range sorted {
		if i < mid {
			firstHalf += abs(txn.Amount)
		} else {
			secondHalf += abs(txn.Amount)
		}
	}

	if firstHalf == 0 {
		return models.TrendStable, 0
	}

	change := (secondHalf - firstHalf) / firstHalf * 100
	switch {
	case change > 10:
		return models.TrendUp, change
	case change < -10:
		return models.TrendDown, change
	default:
		return models.TrendStable, change
	}
}

func snapshotGoals(goals []*models.Goal) []models.GoalSnapshot {
	snapshots := make([]models.GoalSnapshot, 0, len(goals))
	for _, goal := range goals {
		var progress float64
		if goal.TargetAmount > 0 {
			progress = goal.CurrentAmount / goal.TargetAmount * 100
		}
		if progress < 0 {
			progress = 0
		}
		// Over-funded goals exceed 100; that is allowed.
		snapshots = append(snapshots, models.GoalSnapshot{
			ID:              goal.ID,
			Name:            goal.Name,
			TargetAmount:    goal.TargetAmount,
			CurrentAmount:   goal.CurrentAmount,
			ProgressPercent: progress,
			Completed:       goal.CompletedAt != nil,
		})
	}
	return snapshots
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
