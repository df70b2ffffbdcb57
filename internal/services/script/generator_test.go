package script

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/catalog"
	"github.com/audiofin/fincast/internal/common"
	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/models"
)

// echoLLM returns the draft portion of the last user message, so the
// generated content carries exactly the facts the strategy drafted
type echoLLM struct {
	calls    int
	failAt   int // 1-based call index to fail on, 0 = never
	failWith error
}

func (e *echoLLM) Complete(ctx context.Context, messages []interfaces.Message) (string, error) {
	e.calls++
	if e.failAt > 0 && e.calls >= e.failAt {
		return "", e.failWith
	}
	last := messages[len(messages)-1].Content
	return last, nil
}

func (e *echoLLM) HealthCheck(ctx context.Context) error { return nil }
func (e *echoLLM) Provider() string                      { return "echo" }
func (e *echoLLM) Close() error                          { return nil }

// memInsights is an in-memory InsightStorage
type memInsights struct {
	saved []*models.Insight
}

func (m *memInsights) SaveInsight(ctx context.Context, insight *models.Insight) error {
	m.saved = append(m.saved, insight)
	return nil
}

func (m *memInsights) GetInsightsByEpisode(ctx context.Context, episodeID string) ([]*models.Insight, error) {
	return m.saved, nil
}

func (m *memInsights) CountInsightsByPersona(ctx context.Context, userID string) (map[string]int, error) {
	return nil, nil
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load(&common.CatalogConfig{}, arbor.NewLogger())
	require.NoError(t, err)
	return cat
}

func richStory() *models.FinancialStory {
	return &models.FinancialStory{
		UserID:        "user-1",
		WindowDays:    7,
		WindowStart:   time.Now().AddDate(0, 0, -7),
		WindowEnd:     time.Now(),
		TotalSpent:    500,
		AvgDailySpend: 500.0 / 7,
		TxnCount:      10,
		TopCategories: []models.CategorySpend{
			{Category: "Groceries", Amount: 300},
			{Category: "Dining", Amount: 200},
		},
		Trend:           models.TrendStable,
		MerchantCount:   4,
		AutomationCount: 2,
		Goals: []models.GoalSnapshot{
			{ID: "g1", Name: "Emergency Fund", TargetAmount: 1000, CurrentAmount: 600, ProgressPercent: 60},
		},
	}
}

func TestGenerateScriptWeekly(t *testing.T) {
	cat := testCatalog(t)
	insights := &memInsights{}
	gen := NewGenerator(&echoLLM{}, cat, insights, arbor.NewLogger())

	template, err := cat.GetTemplate("weekly")
	require.NoError(t, err)

	episode := &models.Episode{ID: "ep-1", UserID: "user-1", EpisodeType: "weekly"}
	profile := &models.Profile{UserID: "user-1", DisplayName: "Jordan"}

	script, generated, err := gen.GenerateScript(context.Background(), episode, template, richStory(), profile)
	require.NoError(t, err)

	require.Len(t, generated, len(template.Sections))
	assert.Len(t, insights.saved, len(template.Sections))
	assert.NotEmpty(t, script)

	// Sections keep template order via Position
	for i, ins := range generated {
		assert.Equal(t, i, ins.Position)
		assert.Equal(t, template.Sections[i].Name, ins.SectionName)
		assert.Equal(t, "ep-1", ins.EpisodeID)
	}
}

func TestSpendingSummaryReferencesTopCategoryAndTotal(t *testing.T) {
	cat := testCatalog(t)
	insights := &memInsights{}
	gen := NewGenerator(&echoLLM{}, cat, insights, arbor.NewLogger())

	template, err := cat.GetTemplate("weekly")
	require.NoError(t, err)

	episode := &models.Episode{ID: "ep-1", UserID: "user-1", EpisodeType: "weekly"}
	profile := &models.Profile{UserID: "user-1", DisplayName: "Jordan"}

	_, generated, err := gen.GenerateScript(context.Background(), episode, template, richStory(), profile)
	require.NoError(t, err)

	var summary *models.Insight
	for _, ins := range generated {
		if ins.SectionName == "spending_summary" {
			summary = ins
		}
	}
	require.NotNil(t, summary)
	assert.Contains(t, summary.Content, "Groceries")
	assert.Contains(t, summary.Content, "500")
	assert.Equal(t, "transactions", summary.DataSource)
	assert.GreaterOrEqual(t, summary.Confidence, 0.7)
}

func TestGenerateScriptAllOrNothing(t *testing.T) {
	cat := testCatalog(t)
	insights := &memInsights{}
	llm := &echoLLM{failAt: 3, failWith: errors.New("provider unavailable")}
	gen := NewGenerator(llm, cat, insights, arbor.NewLogger())

	template, err := cat.GetTemplate("weekly")
	require.NoError(t, err)

	episode := &models.Episode{ID: "ep-1", UserID: "user-1", EpisodeType: "weekly"}
	profile := &models.Profile{UserID: "user-1"}

	script, generated, err := gen.GenerateScript(context.Background(), episode, template, richStory(), profile)
	require.Error(t, err)

	var genErr *models.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, template.Sections[2].Name, genErr.Section)

	// Script is all-or-nothing, but completed insights are retained
	assert.Empty(t, script)
	assert.Len(t, generated, 2)
	assert.Len(t, insights.saved, 2)
}

func TestGenerateScriptStopsOnCancel(t *testing.T) {
	cat := testCatalog(t)
	gen := NewGenerator(&echoLLM{}, cat, &memInsights{}, arbor.NewLogger())

	template, err := cat.GetTemplate("weekly")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	episode := &models.Episode{ID: "ep-1", UserID: "user-1"}
	_, _, err = gen.GenerateScript(ctx, episode, template, richStory(), &models.Profile{})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrGenerationCancelled)
}

func TestUnknownSectionFailsGeneration(t *testing.T) {
	cat := testCatalog(t)
	gen := NewGenerator(&echoLLM{}, cat, &memInsights{}, arbor.NewLogger())

	template := &models.EpisodeTemplate{
		EpisodeType: "custom",
		Sections: []models.Section{
			{Name: "mystery_section", PersonaID: "penny"},
		},
	}

	episode := &models.Episode{ID: "ep-1", UserID: "user-1"}
	_, _, err := gen.GenerateScript(context.Background(), episode, template, richStory(), &models.Profile{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content strategy")
}

func TestResolvePersonaDefaultTable(t *testing.T) {
	cat := testCatalog(t)
	gen := NewGenerator(&echoLLM{}, cat, &memInsights{}, arbor.NewLogger())

	// Explicit persona wins
	persona, err := gen.ResolvePersona(models.Section{Name: "intro", PersonaID: "max"})
	require.NoError(t, err)
	assert.Equal(t, "max", persona.ID)

	// Omitted persona falls back to the default table
	persona, err = gen.ResolvePersona(models.Section{Name: "goal_updates"})
	require.NoError(t, err)
	assert.Equal(t, "sage", persona.ID)

	// Unknown persona surfaces the sentinel
	_, err = gen.ResolvePersona(models.Section{Name: "intro", PersonaID: "ghost"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrPersonaNotFound)
}

func TestIntroDraftOpensWithCatchphraseAndName(t *testing.T) {
	cat := testCatalog(t)
	penny, err := cat.GetPersona("penny")
	require.NoError(t, err)

	draft := introStrategy{}.Draft(&sectionContext{
		Section:  models.Section{Name: "intro"},
		Position: 0,
		Story:    richStory(),
		Persona:  penny,
		Profile:  &models.Profile{DisplayName: "Jordan"},
	})

	assert.True(t, strings.HasPrefix(draft, penny.Catchphrase(0)))
	assert.Contains(t, draft, "Jordan")
}

func TestGoalUpdatesDraftNarratesBestGoal(t *testing.T) {
	cat := testCatalog(t)
	sage, err := cat.GetPersona("sage")
	require.NoError(t, err)

	story := richStory()
	story.Goals = append(story.Goals, models.GoalSnapshot{
		ID: "g2", Name: "Vacation", TargetAmount: 500, CurrentAmount: 50, ProgressPercent: 10,
	})

	draft := goalUpdatesStrategy{}.Draft(&sectionContext{
		Section: models.Section{Name: "goal_updates"},
		Story:   story,
		Persona: sage,
		Profile: &models.Profile{},
	})

	assert.Contains(t, draft, "Emergency Fund")
	assert.NotContains(t, draft, "Vacation")
	// Progress above the notable threshold earns a catchphrase
	assert.Contains(t, draft, sage.Catchphrase(0))
}

func TestConfidenceReflectsDataSufficiency(t *testing.T) {
	sparse := &models.FinancialStory{WindowDays: 7, Trend: models.TrendStable}
	rich := richStory()

	tests := []struct {
		name  string
		strat strategy
	}{
		{"spending_summary", spendingSummaryStrategy{}},
		{"goal_updates", goalUpdatesStrategy{}},
		{"automation_wins", automationWinsStrategy{}},
		{"trend_deep_dive", trendDeepDiveStrategy{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Less(t, tt.strat.Confidence(sparse), 0.2)
			assert.GreaterOrEqual(t, tt.strat.Confidence(rich), 0.7)
		})
	}
}

func TestOutroReferencesEarlierGoalInsight(t *testing.T) {
	cat := testCatalog(t)
	penny, err := cat.GetPersona("penny")
	require.NoError(t, err)

	draft := outroStrategy{}.Draft(&sectionContext{
		Section: models.Section{Name: "outro"},
		Story:   richStory(),
		Persona: penny,
		Profile: &models.Profile{},
		PriorInsights: []*models.Insight{
			{SectionName: "goal_updates", InsightType: "goal_update", Confidence: 0.7, Content: "goal text"},
		},
	})

	assert.Contains(t, draft, "goal momentum")
}
