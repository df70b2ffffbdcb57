package story

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/models"
)

// fakeRecords is an in-memory RecordStorage for aggregator tests
type fakeRecords struct {
	txns       []*models.Transaction
	goals      []*models.Goal
	activities []*models.Activity
	profile    *models.Profile
	failSource string
}

func (f *fakeRecords) GetTransactions(ctx context.Context, userID string, from, to time.Time) ([]*models.Transaction, error) {
	if f.failSource == "transactions" {
		return nil, &models.AggregationError{Source: "transactions", Err: context.DeadlineExceeded}
	}
	return f.txns, nil
}

func (f *fakeRecords) GetGoals(ctx context.Context, userID string) ([]*models.Goal, error) {
	if f.failSource == "goals" {
		return nil, &models.AggregationError{Source: "goals", Err: context.DeadlineExceeded}
	}
	return f.goals, nil
}

func (f *fakeRecords) GetActivities(ctx context.Context, userID string, from, to time.Time) ([]*models.Activity, error) {
	return f.activities, nil
}

func (f *fakeRecords) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if f.profile != nil {
		return f.profile, nil
	}
	return &models.Profile{UserID: userID}, nil
}

func (f *fakeRecords) SaveTransaction(ctx context.Context, txn *models.Transaction) error { return nil }
func (f *fakeRecords) SaveGoal(ctx context.Context, goal *models.Goal) error              { return nil }
func (f *fakeRecords) SaveActivity(ctx context.Context, activity *models.Activity) error  { return nil }
func (f *fakeRecords) SaveProfile(ctx context.Context, profile *models.Profile) error     { return nil }

func txn(amount float64, category string, daysAgo int) *models.Transaction {
	return &models.Transaction{
		ID:       "t-" + category + "-" + time.Now().Add(-time.Duration(daysAgo)*24*time.Hour).Format("150405.000000000"),
		UserID:   "user-1",
		Amount:   amount,
		Category: category,
		Merchant: category + " Store",
		Date:     time.Now().Add(-time.Duration(daysAgo) * 24 * time.Hour),
	}
}

func TestAggregateTotalsAndCategories(t *testing.T) {
	records := &fakeRecords{
		txns: []*models.Transaction{
			txn(100, "Groceries", 6),
			txn(200, "Groceries", 4),
			txn(150, "Dining", 3),
			txn(50, "Dining", 2),
		},
	}
	agg := NewAggregator(records, arbor.NewLogger())

	story, err := agg.Aggregate(context.Background(), "user-1", 7)
	require.NoError(t, err)

	assert.Equal(t, 500.0, story.TotalSpent)
	assert.Equal(t, 4, story.TxnCount)
	assert.InDelta(t, 500.0/7, story.AvgDailySpend, 0.001)
	require.Len(t, story.TopCategories, 2)
	assert.Equal(t, "Groceries", story.TopCategories[0].Category)
	assert.Equal(t, 300.0, story.TopCategories[0].Amount)
	assert.Equal(t, "Dining", story.TopCategories[1].Category)
	assert.Equal(t, 2, story.MerchantCount)
}

func TestAggregateNegativeAmountsUseAbsoluteValue(t *testing.T) {
	records := &fakeRecords{
		txns: []*models.Transaction{
			txn(-120, "Groceries", 3),
			txn(80, "Groceries", 1),
		},
	}
	agg := NewAggregator(records, arbor.NewLogger())

	story, err := agg.Aggregate(context.Background(), "user-1", 7)
	require.NoError(t, err)
	assert.Equal(t, 200.0, story.TotalSpent)
}

func TestTopCategoriesTruncatedToThree(t *testing.T) {
	records := &fakeRecords{
		txns: []*models.Transaction{
			txn(10, "A", 5),
			txn(40, "B", 5),
			txn(30, "C", 4),
			txn(20, "D", 3),
		},
	}
	agg := NewAggregator(records, arbor.NewLogger())

	story, err := agg.Aggregate(context.Background(), "user-1", 7)
	require.NoError(t, err)

	require.Len(t, story.TopCategories, 3)
	assert.Equal(t, "B", story.TopCategories[0].Category)
	assert.Equal(t, "C", story.TopCategories[1].Category)
	assert.Equal(t, "D", story.TopCategories[2].Category)
}

func TestTopCategoriesTieBrokenByFirstOccurrence(t *testing.T) {
	records := &fakeRecords{
		txns: []*models.Transaction{
			txn(100, "Dining", 5),
			txn(100, "Groceries", 4),
		},
	}
	agg := NewAggregator(records, arbor.NewLogger())

	story, err := agg.Aggregate(context.Background(), "user-1", 7)
	require.NoError(t, err)

	require.Len(t, story.TopCategories, 2)
	assert.Equal(t, "Dining", story.TopCategories[0].Category)
}

func TestSpendTrendClassification(t *testing.T) {
	tests := []struct {
		name       string
		firstHalf  float64
		secondHalf float64
		want       models.TrendDirection
	}{
		{"fifteen percent increase is up", 100, 115, models.TrendUp},
		{"five percent increase is stable", 100, 105, models.TrendStable},
		{"fifteen percent decrease is down", 100, 85, models.TrendDown},
		{"zero first half is stable", 0, 500, models.TrendStable},
		{"exactly ten percent is stable", 100, 110, models.TrendStable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txns := []*models.Transaction{
				{ID: "t1", Amount: tt.firstHalf, Category: "A", Date: time.Now().Add(-4 * 24 * time.Hour)},
				{ID: "t2", Amount: tt.secondHalf, Category: "A", Date: time.Now().Add(-1 * 24 * time.Hour)},
			}
			direction, _ := spendTrend(txns)
			assert.Equal(t, tt.want, direction)
		})
	}
}

func TestGoalProgressMayExceedHundred(t *testing.T) {
	records := &fakeRecords{
		goals: []*models.Goal{
			{ID: "g1", UserID: "user-1", Name: "Emergency Fund", TargetAmount: 1000, CurrentAmount: 1200},
			{ID: "g2", UserID: "user-1", Name: "Vacation", TargetAmount: 500, CurrentAmount: 100},
		},
	}
	agg := NewAggregator(records, arbor.NewLogger())

	story, err := agg.Aggregate(context.Background(), "user-1", 7)
	require.NoError(t, err)

	require.Len(t, story.Goals, 2)
	assert.InDelta(t, 120.0, story.Goals[0].ProgressPercent, 0.001)
	assert.InDelta(t, 20.0, story.Goals[1].ProgressPercent, 0.001)

	best, ok := story.BestGoal()
	require.True(t, ok)
	assert.Equal(t, "Emergency Fund", best.Name)
}

func TestAggregateSparseDataDegrades(t *testing.T) {
	agg := NewAggregator(&fakeRecords{}, arbor.NewLogger())

	story, err := agg.Aggregate(context.Background(), "user-1", 7)
	require.NoError(t, err)

	assert.Equal(t, 0.0, story.TotalSpent)
	assert.Empty(t, story.TopCategories)
	assert.Empty(t, story.Goals)
	assert.Equal(t, models.TrendStable, story.Trend)
	assert.False(t, story.HasTransactions())
}

func TestAggregateSourceFailureIsFatal(t *testing.T) {
	agg := NewAggregator(&fakeRecords{failSource: "transactions"}, arbor.NewLogger())

	_, err := agg.Aggregate(context.Background(), "user-1", 7)
	require.Error(t, err)

	var aggErr *models.AggregationError
	assert.ErrorAs(t, err, &aggErr)
	assert.Equal(t, "transactions", aggErr.Source)
}

func TestAutomationCount(t *testing.T) {
	records := &fakeRecords{
		activities: []*models.Activity{
			{ID: "a1", UserID: "user-1", Type: "automation", Automated: true, Date: time.Now()},
			{ID: "a2", UserID: "user-1", Type: "xp", Automated: false, Date: time.Now()},
			{ID: "a3", UserID: "user-1", Type: "transfer", Automated: true, Date: time.Now()},
		},
	}
	agg := NewAggregator(records, arbor.NewLogger())

	story, err := agg.Aggregate(context.Background(), "user-1", 7)
	require.NoError(t, err)
	assert.Equal(t, 2, story.AutomationCount)
}
