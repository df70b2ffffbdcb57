package script

import (
	"fmt"
	"strings"

	"github.com/audiofin/fincast/internal/models"
)

// Confidence bands reflecting data sufficiency. A populated story
// sub-section earns confident; an empty or default one earns sparse.
const (
	confidenceSparse    = 0.1
	confidenceConfident = 0.7
	confidenceRich      = 0.9
)

// sectionContext carries everything a strategy needs to draft one section
type sectionContext struct {
	Section       models.Section
	Position      int
	Story         *models.FinancialStory
	Persona       *models.Persona
	Profile       *models.Profile
	PriorInsights []*models.Insight
}

// strategy drafts the factual narration for one section type. The draft
// carries every number and name the final text must keep; the
// script-writer rewrites it into the persona's voice without changing
// facts.
type strategy interface {
	InsightType() string
	DataSource() string
	Confidence(story *models.FinancialStory) float64
	Draft(sctx *sectionContext) string
}

// strategyTable is the fixed mapping from section name to content
// strategy. New section types are added here, not by branching inside
// the generator.
var strategyTable = map[string]strategy{
	"intro":            introStrategy{},
	"spending_summary": spendingSummaryStrategy{},
	"goal_updates":     goalUpdatesStrategy{},
	"automation_wins":  automationWinsStrategy{},
	"trend_deep_dive":  trendDeepDiveStrategy{},
	"outro":            outroStrategy{},
}

// defaultPersonaTable assigns a persona to sections whose template entry
// omits one
var defaultPersonaTable = map[string]string{
	"intro":            "penny",
	"spending_summary": "penny",
	"goal_updates":     "sage",
	"automation_wins":  "max",
	"trend_deep_dive":  "max",
	"outro":            "penny",
}

type introStrategy struct{}

func (introStrategy) InsightType() string { return "greeting" }
func (introStrategy) DataSource() string  { return "profile" }

func (introStrategy) Confidence(story *models.FinancialStory) float64 {
	if story.HasTransactions() || len(story.Goals) > 0 {
		return confidenceConfident
	}
	return confidenceSparse
}

func (introStrategy) Draft(sctx *sectionContext) string {
	var b strings.Builder

	if phrase := sctx.Persona.Catchphrase(sctx.Position); phrase != "" {
		b.WriteString(phrase)
		b.WriteString(" ")
	}

	name := sctx.Profile.DisplayName
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Welcome back, %s!", name)

	if sctx.Story.HasTransactions() {
		fmt.Fprintf(&b, " We've got %d transactions from your last %d days to dig into.",
			sctx.Story.TxnCount, sctx.Story.WindowDays)
	} else {
		fmt.Fprintf(&b, " A quiet %d days on the spending front, but there's still plenty to cover.",
			sctx.Story.WindowDays)
	}

	return b.String()
}

type spendingSummaryStrategy struct{}

func (spendingSummaryStrategy) InsightType() string { return "spending_summary" }
func (spendingSummaryStrategy) DataSource() string  { return "transactions" }

func (spendingSummaryStrategy) Confidence(story *models.FinancialStory) float64 {
	if !story.HasTransactions() {
		return confidenceSparse
	}
	if len(story.TopCategories) >= 2 {
		return confidenceRich
	}
	return confidenceConfident
}

func (spendingSummaryStrategy) Draft(sctx *sectionContext) string {
	story := sctx.Story
	if !story.HasTransactions() {
		return "No spending recorded this period. Sometimes the best money move is the one you don't make."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You spent $%.2f across %d transactions, averaging $%.2f a day.",
		story.TotalSpent, story.TxnCount, story.AvgDailySpend)

	top := story.TopCategory()
	if top.Category != "" {
		fmt.Fprintf(&b, " %s led the way at $%.2f.", top.Category, top.Amount)
	}
	if len(story.TopCategories) > 1 {
		second := story.TopCategories[1]
		fmt.Fprintf(&b, " %s came in second at $%.2f.", second.Category, second.Amount)
	}
	if story.MerchantCount > 0 {
		fmt.Fprintf(&b, " That's %d different merchants.", story.MerchantCount)
	}

	return b.String()
}

type goalUpdatesStrategy struct{}

func (goalUpdatesStrategy) InsightType() string { return "goal_update" }
func (goalUpdatesStrategy) DataSource() string  { return "goals" }

func (goalUpdatesStrategy) Confidence(story *models.FinancialStory) float64 {
	if len(story.Goals) == 0 {
		return confidenceSparse
	}
	return confidenceConfident
}

func (goalUpdatesStrategy) Draft(sctx *sectionContext) string {
	best, ok := sctx.Story.BestGoal()
	if !ok {
		return "No savings goals set up yet. Setting even a small one gives every episode something to celebrate."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your %s goal is at %.0f%% — $%.2f of $%.2f.",
		best.Name, best.ProgressPercent, best.CurrentAmount, best.TargetAmount)

	// Notable progress earns a catchphrase
	if best.ProgressPercent >= 50 {
		if phrase := sctx.Persona.Catchphrase(sctx.Position); phrase != "" {
			b.WriteString(" ")
			b.WriteString(phrase)
		}
	}
	if best.Completed || best.ProgressPercent >= 100 {
		b.WriteString(" That goal is fully funded. Time to pick the next mountain.")
	}

	return b.String()
}

type automationWinsStrategy struct{}

func (automationWinsStrategy) InsightType() string { return "automation_win" }
func (automationWinsStrategy) DataSource() string  { return "activities" }

func (automationWinsStrategy) Confidence(story *models.FinancialStory) float64 {
	if story.AutomationCount == 0 {
		return confidenceSparse
	}
	return confidenceConfident
}

func (automationWinsStrategy) Draft(sctx *sectionContext) string {
	count := sctx.Story.AutomationCount
	if count == 0 {
		return "No automations fired this period. Worth setting one up so your money works while you don't."
	}
	return fmt.Sprintf("Your automations ran %d times this period. That's %d money decisions you didn't have to think about.", count, count)
}

type trendDeepDiveStrategy struct{}

func (trendDeepDiveStrategy) InsightType() string { return "trend_analysis" }
func (trendDeepDiveStrategy) DataSource() string  { return "transactions" }

func (trendDeepDiveStrategy) Confidence(story *models.FinancialStory) float64 {
	if !story.HasTransactions() {
		return confidenceSparse
	}
	return confidenceConfident
}

func (trendDeepDiveStrategy) Draft(sctx *sectionContext) string {
	story := sctx.Story
	if !story.HasTransactions() {
		return "Not enough activity this period to read a trend. We'll check back next time."
	}

	switch story.Trend {
	case models.TrendUp:
		return fmt.Sprintf("Spending trended up %.1f%% across the period. Worth a look at what changed in the back half.", story.TrendPercent)
	case models.TrendDown:
		return fmt.Sprintf("Spending trended down %.1f%% across the period. Whatever you're doing, it's working.", -story.TrendPercent)
	default:
		return "Spending held steady across the period. Consistency is its own kind of win."
	}
}

type outroStrategy struct{}

func (outroStrategy) InsightType() string { return "closing" }
func (outroStrategy) DataSource() string  { return "insights" }

func (outroStrategy) Confidence(story *models.FinancialStory) float64 {
	return confidenceConfident
}

// Draft closes the episode, referencing an action item from an earlier
// section for continuity when one exists.
func (outroStrategy) Draft(sctx *sectionContext) string {
	var b strings.Builder
	b.WriteString("That's the episode.")

	for _, prior := range sctx.PriorInsights {
		if prior.InsightType == "goal_update" && prior.Confidence >= confidenceConfident {
			b.WriteString(" Keep that goal momentum going this week.")
			break
		}
	}

	if phrase := sctx.Persona.Catchphrase(sctx.Position); phrase != "" {
		b.WriteString(" ")
		b.WriteString(phrase)
	}
	b.WriteString(" Catch you next time.")

	return b.String()
}
