package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/common"
	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/models"
)

type fakeEpisodes struct {
	interfaces.EpisodeStorage
	episodes []*models.Episode
}

func (f *fakeEpisodes) ListEpisodes(ctx context.Context, opts *interfaces.EpisodeListOptions) ([]*models.Episode, error) {
	return f.episodes, nil
}

type fakeConsumption struct {
	consumed map[string]bool
	calls    []string
}

func (f *fakeConsumption) MarkConsumed(ctx context.Context, key string) (bool, error) {
	f.calls = append(f.calls, key)
	if f.consumed[key] {
		return false, nil
	}
	if f.consumed == nil {
		f.consumed = make(map[string]bool)
	}
	f.consumed[key] = true
	return true, nil
}

func (f *fakeConsumption) IsConsumed(ctx context.Context, key string) (bool, error) {
	return f.consumed[key], nil
}

func TestPeriodKey(t *testing.T) {
	tests := []struct {
		name        string
		episodeType string
		at          time.Time
		expected    string
	}{
		{
			name:        "weekly uses ISO week",
			episodeType: "weekly",
			at:          time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC),
			expected:    "2026-W02",
		},
		{
			name:        "monthly uses calendar month",
			episodeType: "monthly",
			at:          time.Date(2026, 3, 31, 8, 0, 0, 0, time.UTC),
			expected:    "2026-03",
		},
		{
			name:        "unknown type falls back to weekly",
			episodeType: "special",
			at:          time.Date(2025, 12, 29, 8, 0, 0, 0, time.UTC),
			expected:    "2026-W01",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, periodKey(tt.episodeType, tt.at))
		})
	}
}

func TestKnownUsersDeduplicates(t *testing.T) {
	episodes := &fakeEpisodes{episodes: []*models.Episode{
		{ID: "ep-1", UserID: "user-a"},
		{ID: "ep-2", UserID: "user-b"},
		{ID: "ep-3", UserID: "user-a"},
	}}

	svc := NewService(&common.SchedulerConfig{}, nil, episodes, &fakeConsumption{}, arbor.NewLogger())

	users, err := svc.knownUsers()
	require.NoError(t, err)
	assert.Equal(t, []string{"user-a", "user-b"}, users)
}

func TestGenerateForUserSkipsConsumedSlot(t *testing.T) {
	consumption := &fakeConsumption{
		consumed: map[string]bool{"user-a|weekly|2026-W02": true},
	}

	// A consumed slot must short-circuit before the orchestrator is
	// touched; a nil orchestrator panics if it is not.
	svc := NewService(&common.SchedulerConfig{EpisodeType: "weekly"}, nil, &fakeEpisodes{}, consumption, arbor.NewLogger())

	svc.generateForUser("user-a", "weekly", "2026-W02")

	require.Len(t, consumption.calls, 1)
	assert.Equal(t, "user-a|weekly|2026-W02", consumption.calls[0])
}

func TestStartDisabledIsNoOp(t *testing.T) {
	svc := NewService(&common.SchedulerConfig{Enabled: false}, nil, &fakeEpisodes{}, &fakeConsumption{}, arbor.NewLogger())

	require.NoError(t, svc.Start())
	svc.Stop()
}
