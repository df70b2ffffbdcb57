// Package script turns an aggregated financial story into persona-voiced
// episode narration, one section at a time.
package script

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/catalog"
	"github.com/audiofin/fincast/internal/common"
	"github.com/audiofin/fincast/internal/interfaces"
	"github.com/audiofin/fincast/internal/models"
)

// Generator produces the episode script section by section. Sections run
// in template order; later sections may read earlier insights but never
// mutate them. Script assembly is all-or-nothing: one failed section
// aborts the script, though already-persisted insights are retained for
// diagnostics.
type Generator struct {
	llm      interfaces.LLMService
	catalog  *catalog.Catalog
	insights interfaces.InsightStorage
	logger   arbor.ILogger
}

// NewGenerator creates a new script generator
func NewGenerator(llm interfaces.LLMService, cat *catalog.Catalog, insights interfaces.InsightStorage, logger arbor.ILogger) *Generator {
	return &Generator{
		llm:      llm,
		catalog:  cat,
		insights: insights,
		logger:   logger,
	}
}

// ResolvePersona returns the persona for a section, falling back to the
// fixed default-persona table when the template omits one.
func (g *Generator) ResolvePersona(section models.Section) (*models.Persona, error) {
	personaID := section.PersonaID
	if personaID == "" {
		personaID = defaultPersonaTable[section.Name]
	}
	if personaID == "" {
		return nil, fmt.Errorf("section %q has no persona and no default: %w", section.Name, models.ErrPersonaNotFound)
	}
	return g.catalog.GetPersona(personaID)
}

// GenerateScript runs every template section in order and returns the
// assembled script plus the persisted insights. On a section failure the
// returned insights cover only the sections that completed; the error is
// a GenerationError naming the failed section.
func (g *Generator) GenerateScript(ctx context.Context, episode *models.Episode, template *models.EpisodeTemplate, story *models.FinancialStory, profile *models.Profile) (string, []*models.Insight, error) {
	var insights []*models.Insight
	var parts []string

	for i, section := range template.Sections {
		if err := ctx.Err(); err != nil {
			return "", insights, &models.GenerationError{Section: section.Name, Err: models.ErrGenerationCancelled}
		}

		insight, err := g.generateSection(ctx, episode, section, i, story, profile, insights)
		if err != nil {
			return "", insights, &models.GenerationError{Section: section.Name, Err: err}
		}

		if err := g.insights.SaveInsight(ctx, insight); err != nil {
			return "", insights, &models.GenerationError{Section: section.Name, Err: err}
		}

		insights = append(insights, insight)
		parts = append(parts, insight.Content)
	}

	return strings.Join(parts, "\n\n"), insights, nil
}

// generateSection drafts the section's factual narration, then asks the
// script-writer to rewrite it into the persona's voice without changing
// any fact or number.
func (g *Generator) generateSection(ctx context.Context, episode *models.Episode, section models.Section, position int, story *models.FinancialStory, profile *models.Profile, priorInsights []*models.Insight) (*models.Insight, error) {
	strat, ok := strategyTable[section.Name]
	if !ok {
		return nil, fmt.Errorf("no content strategy registered for section %q", section.Name)
	}

	persona, err := g.ResolvePersona(section)
	if err != nil {
		return nil, err
	}

	sctx := &sectionContext{
		Section:       section,
		Position:      position,
		Story:         story,
		Persona:       persona,
		Profile:       profile,
		PriorInsights: priorInsights,
	}

	draft := strat.Draft(sctx)
	confidence := strat.Confidence(story)

	content, err := g.llm.Complete(ctx, buildMessages(persona, section, draft, priorInsights))
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("script-writer returned empty text for section %q", section.Name)
	}

	g.logger.Debug().
		Str("episode_id", episode.ID).
		Str("section", section.Name).
		Str("persona", persona.ID).
		Float64("confidence", confidence).
		Int("length", len(content)).
		Msg("Section generated")

	return &models.Insight{
		ID:          common.NewInsightID(),
		EpisodeID:   episode.ID,
		PersonaID:   persona.ID,
		SectionName: section.Name,
		InsightType: strat.InsightType(),
		Content:     content,
		DataSource:  strat.DataSource(),
		Confidence:  confidence,
		Position:    position,
		CreatedAt:   time.Now(),
	}, nil
}

// buildMessages composes the rewrite conversation: a system prompt fixing
// the persona's voice, prior section text for continuity, and the factual
// draft that must survive the rewrite intact.
func buildMessages(persona *models.Persona, section models.Section, draft string, priorInsights []*models.Insight) []interfaces.Message {
	var system strings.Builder
	fmt.Fprintf(&system, "You are %s, a financial podcast host. Tone: %s.", persona.DisplayName, persona.Voice.Tone)
	if len(persona.Voice.Vocabulary) > 0 {
		fmt.Fprintf(&system, " Favor words like: %s.", strings.Join(persona.Voice.Vocabulary, ", "))
	}
	system.WriteString(" Rewrite the draft below into your spoken voice.")
	system.WriteString(" Keep every number, name, and fact exactly as given.")
	system.WriteString(" Output only the spoken text, no stage directions.")
	if section.TargetDuration > 0 {
		fmt.Fprintf(&system, " Target roughly %d seconds of speech.", section.TargetDuration)
	}

	var user strings.Builder
	if len(priorInsights) > 0 {
		user.WriteString("Earlier in this episode:\n")
		for _, prior := range priorInsights {
			fmt.Fprintf(&user, "[%s] %s\n", prior.SectionName, prior.Content)
		}
		user.WriteString("\n")
	}
	fmt.Fprintf(&user, "Draft for the %q section:\n%s", section.Name, draft)

	return []interfaces.Message{
		{Role: "system", Content: system.String()},
		{Role: "user", Content: user.String()},
	}
}
