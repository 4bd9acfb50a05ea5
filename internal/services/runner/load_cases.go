// -----------------------------------------------------------------------
// Case template overrides - YAML files in the cases directory
// -----------------------------------------------------------------------

package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
)

// LoadCaseOverrides reads *.yaml files from dirPath and merges them into the
// template map. A file whose id matches a built-in case replaces it; a new id
// adds a custom case. A missing directory is not an error; deployments
// without overrides run on the built-ins alone. Invalid files are logged and
// skipped so one bad template cannot block startup.
func LoadCaseOverrides(templates map[string]*models.CaseTemplate, dirPath string, logger arbor.ILogger) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug().Str("dir", dirPath).Msg("No cases directory, using built-in templates")
			return nil
		}
		return fmt.Errorf("failed to read cases directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dirPath, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("file", name).Msg("Failed to read case template file")
			continue
		}

		var template models.CaseTemplate
		if err := yaml.Unmarshal(data, &template); err != nil {
			logger.Warn().Err(err).Str("file", name).Msg("Failed to parse case template file")
			continue
		}
		if err := template.Validate(); err != nil {
			logger.Warn().Err(err).Str("file", name).Msg("Invalid case template, skipping")
			continue
		}

		if _, exists := templates[template.ID]; exists {
			logger.Info().Str("case_id", template.ID).Str("file", name).Msg("Case template overridden")
		} else {
			logger.Info().Str("case_id", template.ID).Str("file", name).Msg("Custom case template added")
		}
		templates[template.ID] = &template
		loaded++
	}

	if loaded > 0 {
		logger.Info().Int("count", loaded).Str("dir", dirPath).Msg("Case template overrides loaded")
	}
	return nil
}
