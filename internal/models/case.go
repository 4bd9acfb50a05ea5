package models

import (
	"errors"
	"fmt"
)

// CaseTemplate declaratively describes one named job type: the base argv the
// pipeline worker is launched with, plus whether an interrupted run of this
// case may be resumed. Report-only and destructive cases are never resumable.
type CaseTemplate struct {
	ID          string   `json:"id" yaml:"id"`
	Description string   `json:"description" yaml:"description"`
	Args        []string `json:"args" yaml:"args"`
	Resumable   bool     `json:"resumable" yaml:"resumable"`
}

// Validate checks the template for the fields the orchestrator depends on
func (c *CaseTemplate) Validate() error {
	if c.ID == "" {
		return errors.New("case template ID is required")
	}
	if len(c.Args) == 0 {
		return fmt.Errorf("case template %s has no arguments", c.ID)
	}
	return nil
}

// Built-in case ids. The default templates for these are defined in the
// runner service and may be overridden from the cases directory.
const (
	CaseFullPipeline = "full-pipeline"
	CaseSyncOnly     = "sync-only"
	CaseExtractOnly  = "extract-only"
	CaseReportOnly   = "report-only"
	CaseReset        = "reset"
)
