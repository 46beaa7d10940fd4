package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// 0. Check for nil config (defensive programming)
	if c == nil {
		return ErrConfigNil
	}

	// 1. API Key validation (required for all AI operations)
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	// 2. Model configuration validation
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity)
	// Reference: Gemini API documentation
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// 3. Retrieval configuration validation
	if c.TopK <= 0 || c.TopK > 50 {
		return fmt.Errorf("%w: must be between 1 and 50, got %d", ErrInvalidTopK, c.TopK)
	}

	if err := validateChunking(c.ChunkSize, c.ChunkOverlap); err != nil {
		return err
	}

	// 4. PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	// Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// 5. Module validation
	if len(c.Modules) == 0 {
		return ErrNoModules
	}

	seen := make(map[string]bool, len(c.Modules))
	for _, m := range c.Modules {
		if err := validateModule(m); err != nil {
			return err
		}
		if seen[m.ID] {
			return fmt.Errorf("%w: duplicate module id %q", ErrInvalidModule, m.ID)
		}
		seen[m.ID] = true
	}

	return nil
}

// validateModule checks one module definition.
func validateModule(m Module) error {
	if m.ID == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrInvalidModule)
	}
	if m.Collection == "" {
		return fmt.Errorf("%w: module %q has no collection", ErrInvalidModule, m.ID)
	}
	if m.SystemPrompt == "" {
		return fmt.Errorf("%w: module %q has no system_prompt", ErrInvalidModule, m.ID)
	}
	if !strings.Contains(m.SystemPrompt, "{context}") || !strings.Contains(m.SystemPrompt, "{question}") {
		return fmt.Errorf("%w: module %q system_prompt must contain {context} and {question}", ErrInvalidModule, m.ID)
	}
	return validateChunking(m.ChunkSize, m.ChunkOverlap)
}

// validateChunking checks chunk size and overlap consistency.
// Overlap must be strictly smaller than size or the splitter cannot advance.
func validateChunking(size, overlap int) error {
	if size <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, size)
	}
	if overlap < 0 {
		return fmt.Errorf("%w: chunk_overlap cannot be negative, got %d", ErrInvalidChunking, overlap)
	}
	if overlap >= size {
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			ErrInvalidChunking, overlap, size)
	}
	return nil
}
