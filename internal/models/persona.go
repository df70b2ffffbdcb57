package models

import "fmt"

// Persona is a named voice and writing profile attributable to script
// sections. Personas are catalog data loaded at process start and never
// mutated at runtime.
type Persona struct {
	ID          string       `toml:"id" json:"id" validate:"required"`
	DisplayName string       `toml:"display_name" json:"display_name" validate:"required"`
	Voice       VoiceProfile `toml:"voice" json:"voice"`
	Audio       AudioProfile `toml:"audio" json:"audio"`
}

// VoiceProfile describes how a persona writes
type VoiceProfile struct {
	Tone         string   `toml:"tone" json:"tone"`
	Vocabulary   []string `toml:"vocabulary" json:"vocabulary"`
	Catchphrases []string `toml:"catchphrases" json:"catchphrases"`
}

// AudioProfile describes how a persona sounds when synthesized
type AudioProfile struct {
	VoiceID  string  `toml:"voice_id" json:"voice_id" validate:"required"`
	Speed    float64 `toml:"speed" json:"speed"`
	Pitch    float64 `toml:"pitch" json:"pitch"`
	Volume   float64 `toml:"volume" json:"volume"`
	Language string  `toml:"language" json:"language"`
}

// Catchphrase returns the persona's catchphrase at index i, cycling through
// the list. Returns empty string when the persona has none.
func (p *Persona) Catchphrase(i int) string {
	if len(p.Voice.Catchphrases) == 0 {
		return ""
	}
	return p.Voice.Catchphrases[i%len(p.Voice.Catchphrases)]
}

// Validate checks the persona record is usable by the pipeline
func (p *Persona) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("persona ID is required")
	}
	if p.DisplayName == "" {
		return fmt.Errorf("persona %s: display name is required", p.ID)
	}
	if p.Audio.VoiceID == "" {
		return fmt.Errorf("persona %s: audio voice_id is required", p.ID)
	}
	return nil
}

// EpisodeTemplate maps an episode type to an ordered list of sections
type EpisodeTemplate struct {
	EpisodeType string    `toml:"episode_type" json:"episode_type" validate:"required"`
	Title       string    `toml:"title" json:"title"`
	Sections    []Section `toml:"sections" json:"sections" validate:"min=1,dive"`
}

// Section is one named, ordered unit of a template with an assigned
// persona and target duration
type Section struct {
	Name           string `toml:"name" json:"name" validate:"required"`
	TargetDuration int    `toml:"target_duration_seconds" json:"target_duration_seconds"`
	PersonaID      string `toml:"persona_id" json:"persona_id"`
	Required       bool   `toml:"required" json:"required"`
}

// Validate checks the template names at least one section
func (t *EpisodeTemplate) Validate() error {
	if t.EpisodeType == "" {
		return fmt.Errorf("template episode_type is required")
	}
	if len(t.Sections) == 0 {
		return fmt.Errorf("template %s: at least one section is required", t.EpisodeType)
	}
	for i, s := range t.Sections {
		if s.Name == "" {
			return fmt.Errorf("template %s: section %d has no name", t.EpisodeType, i)
		}
	}
	return nil
}

// PersonaIDs returns the distinct persona ids referenced by the template,
// in first-use order. Sections without an explicit persona are skipped;
// the generator resolves those through its default-persona table.
func (t *EpisodeTemplate) PersonaIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, s := range t.Sections {
		if s.PersonaID == "" || seen[s.PersonaID] {
			continue
		}
		seen[s.PersonaID] = true
		ids = append(ids, s.PersonaID)
	}
	return ids
}
