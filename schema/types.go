package schema

import "time"

// RepoName is the display text of a repository entry in the app's recent list.
type RepoName string

// RunID identifies one verification run in logs and reports.
type RunID string

// RepoRef identifies a repository the app under test lists. It is observed, never owned.
type RepoRef struct {
	Name RepoName
}

// SessionRequest is the input submitted through the UI for one run.
type SessionRequest struct {
	Repo  RepoRef
	Title string
}

// FailureKind classifies why a run failed.
type FailureKind string

const (
	// FailureNone marks a passing run.
	FailureNone FailureKind = ""
	// FailureElementNotVisible means a targeted element never became visible.
	FailureElementNotVisible FailureKind = "element-not-visible"
	// FailureAmbiguousLocator means a locator required a unique match and found several.
	FailureAmbiguousLocator FailureKind = "ambiguous-locator"
	// FailureNavigationTimeout means the post-submit navigation never happened.
	FailureNavigationTimeout FailureKind = "navigation-timeout"
	// FailureArtifactMissing means no qualifying session file was found.
	FailureArtifactMissing FailureKind = "artifact-missing"
	// FailureResourceFault means the browser or page could not be acquired.
	FailureResourceFault FailureKind = "resource-fault"
	// FailureEvidence means the success screenshot could not be written.
	FailureEvidence FailureKind = "evidence"
	// FailureUnknown covers anything not in the taxonomy.
	FailureUnknown FailureKind = "unknown"
)

// Outcome is the terminal result of a run.
type Outcome struct {
	RunID      RunID         `json:"run_id"`
	Passed     bool          `json:"passed"`
	Kind       FailureKind   `json:"kind,omitempty"`
	Step       string        `json:"step,omitempty"`
	Message    string        `json:"message,omitempty"`
	URL        string        `json:"url,omitempty"`
	Screenshot string        `json:"screenshot,omitempty"`
	HTML       string        `json:"html,omitempty"`
	Artifacts  []string      `json:"artifacts,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// ExitCode maps the outcome to a process exit status.
func (o Outcome) ExitCode() int {
	if o.Passed {
		return 0
	}
	return 1
}
