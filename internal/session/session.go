// ABOUTME: Session and user configuration types for per-user conversational state.
// ABOUTME: A session tracks context, state machine position, and research history.

package session

import "time"

// State is the position of a session in its two-state machine. The only
// legal transitions are idle -> researching (query submitted) and
// researching -> idle (completion, failure, or cancellation/reset).
type State string

const (
	StateIdle        State = "idle"
	StateResearching State = "researching"
)

// ReportFormat values accepted for UserConfig.PreferredReportFormat.
const (
	ReportFormatStandard = "standard"
	ReportFormatAcademic = "academic"
	ReportFormatConcise  = "concise"
)

// UserConfig holds per-user tunables, independent of session lifetime.
type UserConfig struct {
	MaxSearchQueries      int
	EnableWebSearch       bool
	PreferredReportFormat string
	Language              string
	NotificationEnabled   bool
}

// DefaultUserConfig returns the configuration assigned on first access.
func DefaultUserConfig() UserConfig {
	return UserConfig{
		MaxSearchQueries:      3,
		EnableWebSearch:       false,
		PreferredReportFormat: ReportFormatStandard,
		Language:              "zh-TW",
		NotificationEnabled:   true,
	}
}

// QueryRecord is one entry in a session's research history.
type QueryRecord struct {
	ID        string
	Query     string
	Submitted time.Time
}

// Session is the per-user conversational state. Sessions are owned by the
// Store; handlers receive copies and write changes back through Update or
// Mutate, which refresh LastActivity.
type Session struct {
	UserID         string
	CurrentContext string
	State          State
	LastActivity   time.Time
	Config         UserConfig
	History        []QueryRecord
}

// maxHistory caps the in-session research history. The history is
// append-only otherwise; older entries fall off the front.
const maxHistory = 50

// AppendHistory records a submitted query, dropping the oldest entry once
// the cap is reached.
func (s *Session) AppendHistory(rec QueryRecord) {
	s.History = append(s.History, rec)
	if len(s.History) > maxHistory {
		s.History = s.History[len(s.History)-maxHistory:]
	}
}

// newSession returns a fresh default session for the given user.
func newSession(userID string) Session {
	return Session{
		UserID:       userID,
		State:        StateIdle,
		LastActivity: time.Now(),
		Config:       DefaultUserConfig(),
	}
}
