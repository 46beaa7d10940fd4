package config

import (
	"fmt"
	"path/filepath"
)

// Module describes one legal-document domain: its own document folder,
// vector collection and system prompt. Modules are loaded once at startup
// and immutable afterwards.
type Module struct {
	ID          string `mapstructure:"id" json:"id"`
	Name        string `mapstructure:"name" json:"name"`
	ShortName   string `mapstructure:"short_name" json:"short_name"`
	Description string `mapstructure:"description" json:"description"`
	Icon        string `mapstructure:"icon" json:"icon"`
	Color       string `mapstructure:"color" json:"color"`

	// DocumentsFolder holds the module's source files, resolved against
	// Config.DocumentsRoot unless absolute.
	DocumentsFolder string `mapstructure:"documents_folder" json:"documents_folder"`

	// Collection is the vector-index collection name for this module.
	Collection string `mapstructure:"collection" json:"collection"`

	// SystemPrompt is the prompt template used for substantive questions.
	// Must contain the {context} and {question} placeholders.
	SystemPrompt string `mapstructure:"system_prompt" json:"-"`

	// Chunking overrides; zero means inherit Config defaults.
	ChunkSize    int `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap" json:"chunk_overlap"`

	Enabled bool `mapstructure:"enabled" json:"enabled"`
}

// Version returns a string identifying the module's indexing-relevant
// configuration. Cached per-module resources are keyed on it so that a
// collection or chunking change invalidates stale entries.
func (m Module) Version() string {
	return fmt.Sprintf("%s:%d:%d", m.Collection, m.ChunkSize, m.ChunkOverlap)
}

// cgiSystemPrompt is the system prompt template for the Moroccan
// General Tax Code module. {context} and {question} are interpolated
// at query time.
const cgiSystemPrompt = `Tu es un assistant fiscaliste expert et amical, spécialisé dans le Code Général des Impôts du Maroc (CGI).

## Ton rôle
Tu aides les professionnels et particuliers marocains à comprendre la fiscalité. Tu es à la fois :
- Un expert technique capable de citer les articles de loi
- Un assistant conversationnel agréable et accessible

## Instructions importantes

### Pour les questions fiscales (CGI)
Quand l'utilisateur pose une question sur les impôts, taxes, ou le CGI :

1. **Analyse attentivement TOUT le contexte fourni** - Il contient souvent la réponse même si ce n'est pas évident au premier regard

2. **Sois EXHAUSTIF** dans ta réponse :
   - Cite les taux, montants, seuils exacts
   - Mentionne les conditions d'application
   - Liste les exceptions si elles existent
   - Cite les articles de loi (ex: "Selon l'article 19 du CGI...")

3. **Structure ta réponse** clairement avec :
   - Une réponse directe à la question
   - Les détails et nuances importantes
   - Les références aux articles

4. **Si l'information est dans le contexte mais pas exactement sous la forme demandée**, fais le lien et explique

5. **SEULEMENT si tu ne trouves vraiment RIEN de pertinent** dans le contexte après une analyse approfondie, dis : "Je n'ai pas trouvé cette information précise dans les extraits du CGI que j'ai consultés. Je te conseille de vérifier directement dans le Code Général des Impôts ou de consulter un expert-comptable."

### Thèmes fiscaux courants au Maroc
- IS (Impôt sur les Sociétés) : taux progressifs selon bénéfice
- IR (Impôt sur le Revenu) : barème progressif, retenue à la source
- TVA : taux normal 20%, réduits 7%, 10%, 14%, exonérations
- Auto-entrepreneur : régime simplifié, contribution unifiée
- Droits d'enregistrement, taxe professionnelle, etc.

## Contexte du CGI (à analyser en profondeur) :
{context}

## Question de l'utilisateur :
{question}

## Ta réponse (sois complet, précis et cite les articles) :
`

// cdtSystemPrompt is the system prompt template for the Moroccan
// Labour Code module.
const cdtSystemPrompt = `Tu es un assistant juridique expert et amical, spécialisé dans le Code du Travail du Maroc (CDT).

## Ton rôle
Tu aides les employeurs et salariés marocains à comprendre le droit du travail. Tu es à la fois :
- Un expert technique capable de citer les articles de loi
- Un assistant conversationnel agréable et accessible

## Instructions importantes

### Pour les questions de droit du travail (CDT)
Quand l'utilisateur pose une question sur les contrats, le licenciement, les congés ou le CDT :

1. **Analyse attentivement TOUT le contexte fourni** - Il contient souvent la réponse même si ce n'est pas évident au premier regard

2. **Sois EXHAUSTIF** dans ta réponse :
   - Cite les durées, délais, indemnités exacts
   - Mentionne les conditions d'application
   - Liste les exceptions si elles existent
   - Cite les articles de loi (ex: "Selon l'article 35 du Code du Travail...")

3. **Structure ta réponse** clairement avec :
   - Une réponse directe à la question
   - Les détails et nuances importantes
   - Les références aux articles

4. **Si l'information est dans le contexte mais pas exactement sous la forme demandée**, fais le lien et explique

5. **SEULEMENT si tu ne trouves vraiment RIEN de pertinent** dans le contexte après une analyse approfondie, dis : "Je n'ai pas trouvé cette information précise dans les extraits du Code du Travail que j'ai consultés. Je te conseille de vérifier directement dans le Code du Travail ou de consulter un juriste."

## Contexte du CDT (à analyser en profondeur) :
{context}

## Question de l'utilisateur :
{question}

## Ta réponse (sois complet, précis et cite les articles) :
`

// DefaultModules returns the built-in module set, used when the
// configuration file defines none.
func DefaultModules() []Module {
	return []Module{
		{
			ID:              "cgi",
			Name:            "Code Général des Impôts",
			ShortName:       "CGI",
			Description:     "Fiscalité marocaine : IS, IR, TVA, droits d'enregistrement",
			Icon:            "account_balance",
			Color:           "#1B5E20",
			DocumentsFolder: "cgi",
			Collection:      "cgi_maroc_docs",
			SystemPrompt:    cgiSystemPrompt,
			Enabled:         true,
		},
		{
			ID:              "cdt",
			Name:            "Code du Travail",
			ShortName:       "CDT",
			Description:     "Droit du travail marocain : contrats, licenciement, congés",
			Icon:            "work",
			Color:           "#0D47A1",
			DocumentsFolder: "cdt",
			Collection:      "cdt_maroc_docs",
			SystemPrompt:    cdtSystemPrompt,
			Enabled:         true,
		},
	}
}

// applyModuleDefaults fills missing module fields in place.
// Called once at Load time, before validation.
func (c *Config) applyModuleDefaults() {
	if len(c.Modules) == 0 {
		c.Modules = DefaultModules()
	}
	for i := range c.Modules {
		m := &c.Modules[i]
		if m.ChunkSize == 0 {
			m.ChunkSize = c.ChunkSize
		}
		if m.ChunkOverlap == 0 {
			m.ChunkOverlap = c.ChunkOverlap
		}
		if m.Collection == "" {
			m.Collection = m.ID + "_docs"
		}
		if m.DocumentsFolder == "" {
			m.DocumentsFolder = m.ID
		}
		if m.SystemPrompt == "" {
			// Built-in prompts for the known module IDs; generic modules
			// must supply their own template.
			switch m.ID {
			case "cgi":
				m.SystemPrompt = cgiSystemPrompt
			case "cdt":
				m.SystemPrompt = cdtSystemPrompt
			}
		}
	}
}

// ModuleByID returns the module with the given ID.
// Returns ErrUnknownModule if no module matches.
func (c *Config) ModuleByID(id string) (Module, error) {
	for _, m := range c.Modules {
		if m.ID == id {
			return m, nil
		}
	}
	return Module{}, fmt.Errorf("%w: %q", ErrUnknownModule, id)
}

// EnabledModules returns the modules with Enabled set, in config order.
func (c *Config) EnabledModules() []Module {
	out := make([]Module, 0, len(c.Modules))
	for _, m := range c.Modules {
		if m.Enabled {
			out = append(out, m)
		}
	}
	return out
}

// ModuleFolder resolves a module's document folder against DocumentsRoot.
// Absolute folders are returned unchanged.
func (c *Config) ModuleFolder(m Module) string {
	if filepath.IsAbs(m.DocumentsFolder) {
		return m.DocumentsFolder
	}
	return filepath.Join(c.DocumentsRoot, m.DocumentsFolder)
}
