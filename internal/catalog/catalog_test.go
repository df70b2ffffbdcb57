package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audiofin/fincast/internal/common"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	cfg := &common.CatalogConfig{}
	c, err := Load(cfg, common.GetLogger())
	require.NoError(t, err)

	// Every persona referenced by every template must resolve
	for _, episodeType := range c.EpisodeTypes() {
		tmpl, err := c.GetTemplate(episodeType)
		require.NoError(t, err)
		assert.NotEmpty(t, tmpl.Sections, "template %s has no sections", episodeType)
		for _, s := range tmpl.Sections {
			if s.PersonaID == "" {
				continue
			}
			_, err := c.GetPersona(s.PersonaID)
			assert.NoError(t, err, "template %s section %s persona %s", episodeType, s.Name, s.PersonaID)
		}
	}
}

func TestGetTemplateNotFound(t *testing.T) {
	c, err := Load(&common.CatalogConfig{}, common.GetLogger())
	require.NoError(t, err)

	_, err = c.GetTemplate("daily_horoscope")
	assert.Error(t, err)
}

func TestLoadRejectsUnknownPersona(t *testing.T) {
	dir := t.TempDir()
	templates := `
[[templates]]
episode_type = "broken"

[[templates.sections]]
name = "intro"
target_duration_seconds = 30
persona_id = "ghost"
required = true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "templates.toml"), []byte(templates), 0644))

	cfg := &common.CatalogConfig{TemplatesDir: dir}
	_, err := Load(cfg, common.GetLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown persona")
}

func TestLoadRejectsEmptyTemplate(t *testing.T) {
	dir := t.TempDir()
	templates := `
[[templates]]
episode_type = "empty"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "templates.toml"), []byte(templates), 0644))

	_, err := Load(&common.CatalogConfig{TemplatesDir: dir}, common.GetLogger())
	assert.Error(t, err)
}

func TestCatchphraseCycles(t *testing.T) {
	c, err := Load(&common.CatalogConfig{}, common.GetLogger())
	require.NoError(t, err)

	p, err := c.GetPersona("penny")
	require.NoError(t, err)
	require.NotEmpty(t, p.Voice.Catchphrases)

	n := len(p.Voice.Catchphrases)
	assert.Equal(t, p.Catchphrase(0), p.Catchphrase(n))
}
