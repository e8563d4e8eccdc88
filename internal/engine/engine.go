// ABOUTME: The seam between the gateway and the external research engine.
// ABOUTME: Defines the typed invocation config and the Engine interface.

package engine

import (
	"context"

	"github.com/2389/line-gateway/internal/session"
)

// ResearchConfig is the exact shape the engine accepts. Keeping the seam
// typed (rather than a loose string map) lets the compiler catch drift
// between per-user settings and what the engine understands.
type ResearchConfig struct {
	MaxSearchQueries int    `json:"max_search_queries"`
	EnableWebSearch  bool   `json:"enable_web_search"`
	ReportStructure  string `json:"report_structure"`
	Language         string `json:"language"`
}

// ConfigFromUser maps a user's per-session settings to an engine config.
func ConfigFromUser(cfg session.UserConfig) ResearchConfig {
	return ResearchConfig{
		MaxSearchQueries: cfg.MaxSearchQueries,
		EnableWebSearch:  cfg.EnableWebSearch,
		ReportStructure:  cfg.PreferredReportFormat,
		Language:         cfg.Language,
	}
}

// Engine runs a research query to completion. Invocations may take
// seconds to minutes; callers run them off the request path. A failed
// invocation returns an error, never a partial answer.
type Engine interface {
	Invoke(ctx context.Context, query string, cfg ResearchConfig) (string, error)
}
