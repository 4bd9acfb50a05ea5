// -----------------------------------------------------------------------
// Case templates - built-in job type definitions and argv assembly
// -----------------------------------------------------------------------

package runner

import (
	"fmt"
	"strconv"

	"github.com/gairiksingha-pixel/intelliextract-runner/internal/models"
)

// DefaultTemplates returns the built-in case definitions. Entries may be
// overridden by template files in the cases directory; the override keeps
// the case id but replaces description, args and resumability.
func DefaultTemplates() map[string]*models.CaseTemplate {
	templates := []*models.CaseTemplate{
		{
			ID:          models.CaseFullPipeline,
			Description: "Sync remote documents then extract every staged file",
			Args:        []string{"run", "--mode", "full"},
			Resumable:   true,
		},
		{
			ID:          models.CaseSyncOnly,
			Description: "Sync remote documents into staging without extraction",
			Args:        []string{"run", "--mode", "sync"},
			Resumable:   true,
		},
		{
			ID:          models.CaseExtractOnly,
			Description: "Extract staged files without syncing",
			Args:        []string{"run", "--mode", "extract"},
			Resumable:   true,
		},
		{
			ID:          models.CaseReportOnly,
			Description: "Regenerate reports from previously extracted results",
			Args:        []string{"run", "--mode", "report"},
			Resumable:   false,
		},
		{
			ID:          models.CaseReset,
			Description: "Clear staging and extraction state for a fresh start",
			Args:        []string{"reset", "--confirm"},
			Resumable:   false,
		},
	}

	byID := make(map[string]*models.CaseTemplate, len(templates))
	for _, t := range templates {
		byID[t.ID] = t
	}
	return byID
}

// BuildArgs assembles the full argv for a run: the template's base args
// followed by the caller-supplied parameters. Scope pairs are passed one
// flag per pair as brand:purchaser.
func BuildArgs(template *models.CaseTemplate, params models.RunParams) []string {
	args := make([]string, len(template.Args))
	copy(args, template.Args)

	if params.SyncLimit > 0 {
		args = append(args, "--sync-limit", strconv.Itoa(params.SyncLimit))
	}
	if params.ExtractLimit > 0 {
		args = append(args, "--extract-limit", strconv.Itoa(params.ExtractLimit))
	}
	for _, pair := range params.Pairs {
		args = append(args, "--pair", fmt.Sprintf("%s:%s", pair.Brand, pair.Purchaser))
	}
	if params.Resume {
		args = append(args, "--resume")
	}

	return args
}
