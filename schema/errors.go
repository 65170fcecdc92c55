package schema

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest indicates a malformed session request.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrElementNotVisible indicates a UI element did not become visible in time.
	ErrElementNotVisible = errors.New("element not visible")
	// ErrAmbiguousLocator indicates a unique locator matched more than one element.
	ErrAmbiguousLocator = errors.New("ambiguous locator")
	// ErrNavigationTimeout indicates the expected URL transition did not occur.
	ErrNavigationTimeout = errors.New("navigation timeout")
	// ErrArtifactMissing indicates no qualifying session artifact exists.
	ErrArtifactMissing = errors.New("session artifact missing")
	// ErrResourceFault indicates the browser or page could not be acquired.
	ErrResourceFault = errors.New("browser unavailable")
	// ErrEvidence indicates an evidence file could not be written.
	ErrEvidence = errors.New("evidence capture failed")
)

// StepError attributes a failure to a named step of the flow.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StepOf returns the step name carried by err, if any.
func StepOf(err error) string {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr.Step
	}
	return ""
}

// KindOf classifies err into the failure taxonomy.
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrResourceFault):
		return FailureResourceFault
	case errors.Is(err, ErrAmbiguousLocator):
		return FailureAmbiguousLocator
	case errors.Is(err, ErrElementNotVisible):
		return FailureElementNotVisible
	case errors.Is(err, ErrNavigationTimeout):
		return FailureNavigationTimeout
	case errors.Is(err, ErrArtifactMissing):
		return FailureArtifactMissing
	case errors.Is(err, ErrEvidence):
		return FailureEvidence
	default:
		return FailureUnknown
	}
}
