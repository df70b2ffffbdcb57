package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/models"
)

func openTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	tmpDir := t.TempDir()

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}

func TestEpisodeLifecyclePersistence(t *testing.T) {
	db := openTestDB(t)
	logger := arbor.NewLogger()
	storage := NewEpisodeStorage(db, logger)

	ctx := context.Background()

	episode := &models.Episode{
		ID:          "ep-1",
		UserID:      "user-1",
		EpisodeType: "weekly",
		PersonaIDs:  []string{"penny", "max"},
		Status:      models.EpisodeStatusPending,
		Stage:       models.StageQueued,
		CreatedAt:   time.Now(),
	}
	if err := storage.SaveEpisode(ctx, episode); err != nil {
		t.Fatalf("Failed to save episode: %v", err)
	}

	// Transition pending -> generating -> completed and verify each state
	// round-trips through the store.
	episode.MarkGenerating(models.StageAggregating)
	if err := storage.SaveEpisode(ctx, episode); err != nil {
		t.Fatalf("Failed to save generating episode: %v", err)
	}

	loaded, err := storage.GetEpisode(ctx, "ep-1")
	if err != nil {
		t.Fatalf("Failed to load episode: %v", err)
	}
	if loaded.Status != models.EpisodeStatusGenerating {
		t.Errorf("Expected status generating, got %s", loaded.Status)
	}
	if loaded.Stage != models.StageAggregating {
		t.Errorf("Expected stage %q, got %q", models.StageAggregating, loaded.Stage)
	}

	episode.MarkCompleted("file:///audio/ep-1.wav", 312.5, 1024000)
	if err := storage.SaveEpisode(ctx, episode); err != nil {
		t.Fatalf("Failed to save completed episode: %v", err)
	}

	loaded, err = storage.GetEpisode(ctx, "ep-1")
	if err != nil {
		t.Fatalf("Failed to reload episode: %v", err)
	}
	if loaded.Status != models.EpisodeStatusCompleted {
		t.Errorf("Expected status completed, got %s", loaded.Status)
	}
	if loaded.AudioRef == "" {
		t.Error("Expected audio reference on completed episode")
	}
	if !loaded.IsTerminal() {
		t.Error("Completed episode should be terminal")
	}
}

func TestGetEpisodeNotFound(t *testing.T) {
	db := openTestDB(t)
	storage := NewEpisodeStorage(db, arbor.NewLogger())

	_, err := storage.GetEpisode(context.Background(), "missing")
	if err == nil {
		t.Fatal("Expected error for missing episode")
	}
	if !errors.Is(err, models.ErrEpisodeNotFound) {
		t.Errorf("Expected ErrEpisodeNotFound, got %v", err)
	}
}

func TestListEpisodesFilters(t *testing.T) {
	db := openTestDB(t)
	storage := NewEpisodeStorage(db, arbor.NewLogger())
	ctx := context.Background()

	base := time.Now()
	episodes := []*models.Episode{
		{ID: "ep-a", UserID: "user-1", EpisodeType: "weekly", Status: models.EpisodeStatusCompleted, CreatedAt: base},
		{ID: "ep-b", UserID: "user-1", EpisodeType: "monthly", Status: models.EpisodeStatusFailed, CreatedAt: base.Add(time.Minute)},
		{ID: "ep-c", UserID: "user-2", EpisodeType: "weekly", Status: models.EpisodeStatusCompleted, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, ep := range episodes {
		if err := storage.SaveEpisode(ctx, ep); err != nil {
			t.Fatalf("Failed to save %s: %v", ep.ID, err)
		}
	}

	byUser, err := storage.ListEpisodes(ctx, &interfaces.EpisodeListOptions{UserID: "user-1"})
	if err != nil {
		t.Fatalf("Failed to list by user: %v", err)
	}
	if len(byUser) != 2 {
		t.Errorf("Expected 2 episodes for user-1, got %d", len(byUser))
	}

	byType, err := storage.ListEpisodes(ctx, &interfaces.EpisodeListOptions{UserID: "user-1", EpisodeType: "weekly"})
	if err != nil {
		t.Fatalf("Failed to list by type: %v", err)
	}
	if len(byType) != 1 || byType[0].ID != "ep-a" {
		t.Errorf("Expected only ep-a for user-1 weekly, got %d results", len(byType))
	}

	byStatus, err := storage.ListEpisodes(ctx, &interfaces.EpisodeListOptions{Status: models.EpisodeStatusCompleted})
	if err != nil {
		t.Fatalf("Failed to list by status: %v", err)
	}
	if len(byStatus) != 2 {
		t.Errorf("Expected 2 completed episodes, got %d", len(byStatus))
	}
}

func TestNextEpisodeNumberMonotonic(t *testing.T) {
	db := openTestDB(t)
	storage := NewEpisodeStorage(db, arbor.NewLogger())
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		got, err := storage.NextEpisodeNumber(ctx, "user-1", "penny,max")
		if err != nil {
			t.Fatalf("Allocation %d failed: %v", want, err)
		}
		if got != want {
			t.Errorf("Expected episode number %d, got %d", want, got)
		}
	}

	// A different persona set gets its own sequence
	got, err := storage.NextEpisodeNumber(ctx, "user-1", "sage")
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("Expected new persona set to start at 1, got %d", got)
	}

	// So does a different user
	got, err = storage.NextEpisodeNumber(ctx, "user-2", "penny,max")
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("Expected new user to start at 1, got %d", got)
	}
}

func TestGetStaleEpisodes(t *testing.T) {
	db := openTestDB(t)
	storage := NewEpisodeStorage(db, arbor.NewLogger())
	ctx := context.Background()

	stale := &models.Episode{ID: "ep-stale", UserID: "user-1", Status: models.EpisodeStatusGenerating}
	fresh := &models.Episode{ID: "ep-fresh", UserID: "user-1", Status: models.EpisodeStatusGenerating}
	done := &models.Episode{ID: "ep-done", UserID: "user-1", Status: models.EpisodeStatusCompleted}

	for _, ep := range []*models.Episode{stale, fresh, done} {
		if err := storage.SaveEpisode(ctx, ep); err != nil {
			t.Fatal(err)
		}
	}

	// SaveEpisode stamps UpdatedAt with the current time, so backdate the
	// stale row directly through the store.
	stale.UpdatedAt = time.Now().Add(-time.Hour)
	if err := db.Store().Upsert(stale.ID, stale); err != nil {
		t.Fatal(err)
	}

	found, err := storage.GetStaleEpisodes(ctx, 15*time.Minute)
	if err != nil {
		t.Fatalf("Failed to find stale episodes: %v", err)
	}
	if len(found) != 1 || found[0].ID != "ep-stale" {
		t.Errorf("Expected only ep-stale, got %d results", len(found))
	}
}

func TestInsightOrderingByPosition(t *testing.T) {
	db := openTestDB(t)
	storage := NewInsightStorage(db, arbor.NewLogger())
	ctx := context.Background()

	// Save out of order; retrieval must follow template position
	positions := []int{2, 0, 1}
	for i, pos := range positions {
		insight := &models.Insight{
			ID:          "ins-" + string(rune('a'+i)),
			EpisodeID:   "ep-1",
			PersonaID:   "penny",
			SectionName: "intro",
			Content:     "text",
			Position:    pos,
			CreatedAt:   time.Now(),
		}
		if err := storage.SaveInsight(ctx, insight); err != nil {
			t.Fatalf("Failed to save insight: %v", err)
		}
	}

	insights, err := storage.GetInsightsByEpisode(ctx, "ep-1")
	if err != nil {
		t.Fatalf("Failed to load insights: %v", err)
	}
	if len(insights) != 3 {
		t.Fatalf("Expected 3 insights, got %d", len(insights))
	}
	for i, ins := range insights {
		if ins.Position != i {
			t.Errorf("Expected position %d at index %d, got %d", i, i, ins.Position)
		}
	}
}

func TestConsumptionMarkOnce(t *testing.T) {
	db := openTestDB(t)
	storage := NewConsumptionStorage(db, arbor.NewLogger())
	ctx := context.Background()

	first, err := storage.MarkConsumed(ctx, "user-1|weekly|2026-W35")
	if err != nil {
		t.Fatalf("First mark failed: %v", err)
	}
	if !first {
		t.Error("First mark should report true")
	}

	second, err := storage.MarkConsumed(ctx, "user-1|weekly|2026-W35")
	if err != nil {
		t.Fatalf("Second mark failed: %v", err)
	}
	if second {
		t.Error("Second mark should report false")
	}

	consumed, err := storage.IsConsumed(ctx, "user-1|weekly|2026-W35")
	if err != nil {
		t.Fatal(err)
	}
	if !consumed {
		t.Error("Key should read as consumed")
	}

	other, err := storage.IsConsumed(ctx, "user-1|weekly|2026-W36")
	if err != nil {
		t.Fatal(err)
	}
	if other {
		t.Error("Unmarked key should read as not consumed")
	}
}
