package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/models"
)

// RecordStorage implements the RecordStorage interface for Badger.
// It is the local projection of the external record store: transactions,
// goals, activities, and profiles, queried by user and date range.
type RecordStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRecordStorage creates a new RecordStorage instance
func NewRecordStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RecordStorage {
	return &RecordStorage{
		db:     db,
		logger: logger,
	}
}

func (s *RecordStorage) GetTransactions(ctx context.Context, userID string, from, to time.Time) ([]*models.Transaction, error) {
	var txns []models.Transaction
	err := s.db.Store().Find(&txns,
		badgerhold.Where("UserID").Eq(userID).Index("UserID").
			And("Date").Ge(from).And("Date").Le(to))
	if err != nil {
		return nil, &models.AggregationError{Source: "transactions", Err: err}
	}

	result := make([]*models.Transaction, len(txns))
	for i := range txns {
		result[i] = &txns[i]
	}
	return result, nil
}

func (s *RecordStorage) GetGoals(ctx context.Context, userID string) ([]*models.Goal, error) {
	var goals []models.Goal
	err := s.db.Store().Find(&goals,
		badgerhold.Where("UserID").Eq(userID).Index("UserID"))
	if err != nil {
		return nil, &models.AggregationError{Source: "goals", Err: err}
	}

	result := make([]*models.Goal, len(goals))
	for i := range goals {
		result[i] = &goals[i]
	}
	return result, nil
}

func (s *RecordStorage) GetActivities(ctx context.Context, userID string, from, to time.Time) ([]*models.Activity, error) {
	var activities []models.Activity
	err := s.db.Store().Find(&activities,
		badgerhold.Where("UserID").Eq(userID).Index("UserID").
			And("Date").Ge(from).And("Date").Le(to))
	if err != nil {
		return nil, &models.AggregationError{Source: "activities", Err: err}
	}

	result := make([]*models.Activity, len(activities))
	for i := range activities {
		result[i] = &activities[i]
	}
	return result, nil
}

func (s *RecordStorage) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.Store().Get(userID, &profile); err != nil {
		if err == badgerhold.ErrNotFound {
			// Missing profile degrades; the generator falls back to a
			// neutral greeting.
			return &models.Profile{UserID: userID}, nil
		}
		return nil, &models.AggregationError{Source: "profile", Err: err}
	}
	return &profile, nil
}

func (s *RecordStorage) SaveTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == "" {
		return fmt.Errorf("transaction ID is required")
	}
	if err := s.db.Store().Upsert(txn.ID, txn); err != nil {
		return &models.PersistenceError{Entity: "transaction", Err: err}
	}
	return nil
}

func (s *RecordStorage) SaveGoal(ctx context.Context, goal *models.Goal) error {
	if goal.ID == "" {
		return fmt.Errorf("goal ID is required")
	}
	if err := s.db.Store().Upsert(goal.ID, goal); err != nil {
		return &models.PersistenceError{Entity: "goal", Err: err}
	}
	return nil
}

func (s *RecordStorage) SaveActivity(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		return fmt.Errorf("activity ID is required")
	}
	if err := s.db.Store().Upsert(activity.ID, activity); err != nil {
		return &models.PersistenceError{Entity: "activity", Err: err}
	}
	return nil
}

func (s *RecordStorage) SaveProfile(ctx context.Context, profile *models.Profile) error {
	if profile.UserID == "" {
		return fmt.Errorf("profile user ID is required")
	}
	if err := s.db.Store().Upsert(profile.UserID, profile); err != nil {
		return &models.PersistenceError{Entity: "profile", Err: err}
	}
	return nil
}
