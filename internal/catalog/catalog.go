// Package catalog loads the persona catalog and template registry from
// TOML files at process start. Both are immutable after load; a template
// referencing an unknown persona fails startup, not a per-request call.
package catalog

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/arbor"

	"github.com/audiofin/fincast/internal/common"
	"github.com/audiofin/fincast/internal/models"
)

//go:embed defaults/personas.toml defaults/templates.toml
var defaultsFS embed.FS

type personaFile struct {
	Personas []models.Persona `toml:"personas"`
}

type templateFile struct {
	Templates []models.EpisodeTemplate `toml:"templates"`
}

// Catalog is the read-only persona catalog and template registry
type Catalog struct {
	personas  map[string]*models.Persona
	templates map[string]*models.EpisodeTemplate
	logger    arbor.ILogger
}

// Load builds the catalog from the configured directories, falling back
// to the embedded defaults when a directory is missing or empty.
// Validation failures are fatal: a broken catalog must stop startup
// rather than silently produce partial episodes at runtime.
func Load(cfg *common.CatalogConfig, logger arbor.ILogger) (*Catalog, error) {
	c := &Catalog{
		personas:  make(map[string]*models.Persona),
		templates: make(map[string]*models.EpisodeTemplate),
		logger:    logger,
	}

	personaDocs, err := readTOMLDir(cfg.PersonasDir, "defaults/personas.toml")
	if err != nil {
		return nil, fmt.Errorf("failed to load persona catalog: %w", err)
	}
	for _, doc := range personaDocs {
		var pf personaFile
		if err := toml.Unmarshal(doc, &pf); err != nil {
			return nil, fmt.Errorf("failed to parse persona file: %w", err)
		}
		for i := range pf.Personas {
			p := pf.Personas[i]
			if err := p.Validate(); err != nil {
				return nil, fmt.Errorf("invalid persona: %w", err)
			}
			if _, exists := c.personas[p.ID]; exists {
				return nil, fmt.Errorf("duplicate persona id: %s", p.ID)
			}
			c.personas[p.ID] = &p
		}
	}
	if len(c.personas) == 0 {
		return nil, fmt.Errorf("persona catalog is empty")
	}

	templateDocs, err := readTOMLDir(cfg.TemplatesDir, "defaults/templates.toml")
	if err != nil {
		return nil, fmt.Errorf("failed to load template registry: %w", err)
	}
	validate := validator.New()
	for _, doc := range templateDocs {
		var tf templateFile
		if err := toml.Unmarshal(doc, &tf); err != nil {
			return nil, fmt.Errorf("failed to parse template file: %w", err)
		}
		for i := range tf.Templates {
			t := tf.Templates[i]
			if err := t.Validate(); err != nil {
				return nil, fmt.Errorf("invalid template: %w", err)
			}
			if err := validate.Struct(&t); err != nil {
				return nil, fmt.Errorf("invalid template %s: %w", t.EpisodeType, err)
			}
			if _, exists := c.templates[t.EpisodeType]; exists {
				return nil, fmt.Errorf("duplicate template episode type: %s", t.EpisodeType)
			}
			c.templates[t.EpisodeType] = &t
		}
	}
	if len(c.templates) == 0 {
		return nil, fmt.Errorf("template registry is empty")
	}

	// Load-time invariant: every explicitly-assigned section persona must
	// resolve in the persona catalog.
	for _, t := range c.templates {
		for _, s := range t.Sections {
			if s.PersonaID == "" {
				continue
			}
			if _, ok := c.personas[s.PersonaID]; !ok {
				return nil, fmt.Errorf("template %s section %s references unknown persona %s",
					t.EpisodeType, s.Name, s.PersonaID)
			}
		}
	}

	logger.Info().
		Int("personas", len(c.personas)).
		Int("templates", len(c.templates)).
		Msg("Catalog loaded")

	return c, nil
}

// readTOMLDir returns the raw TOML documents from dir, or the embedded
// fallback when the directory has no TOML files
func readTOMLDir(dir, fallback string) ([][]byte, error) {
	var docs [][]byte

	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err == nil {
			for _, entry := range entries {
				if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
					continue
				}
				data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
				if err != nil {
					return nil, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
				}
				docs = append(docs, data)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
		}
	}

	if len(docs) == 0 {
		data, err := defaultsFS.ReadFile(fallback)
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded defaults: %w", err)
		}
		docs = append(docs, data)
	}

	return docs, nil
}

// GetPersona returns the persona for id
func (c *Catalog) GetPersona(id string) (*models.Persona, error) {
	p, ok := c.personas[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrPersonaNotFound, id)
	}
	return p, nil
}

// GetTemplate returns the template for an episode type
func (c *Catalog) GetTemplate(episodeType string) (*models.EpisodeTemplate, error) {
	t, ok := c.templates[episodeType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrTemplateNotFound, episodeType)
	}
	return t, nil
}

// Personas returns all catalog personas
func (c *Catalog) Personas() []*models.Persona {
	out := make([]*models.Persona, 0, len(c.personas))
	for _, p := range c.personas {
		out = append(out, p)
	}
	return out
}

// EpisodeTypes returns the registered episode type keys
func (c *Catalog) EpisodeTypes() []string {
	out := make([]string, 0, len(c.templates))
	for k := range c.templates {
		out = append(out, k)
	}
	return out
}
