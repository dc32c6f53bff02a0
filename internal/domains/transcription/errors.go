package transcription

import "fmt"

// ValidationError is a client mistake in the upload itself.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// EnvironmentUnavailableError means the speech runtime failed its probe.
type EnvironmentUnavailableError struct {
	Reason string
}

func (e *EnvironmentUnavailableError) Error() string {
	if e.Reason == "" {
		return "speech environment unavailable"
	}
	return fmt.Sprintf("speech environment unavailable: %s", e.Reason)
}

// UnusableResultError means the worker finished but reported failure or
// produced no text.
type UnusableResultError struct {
	Reason string
}

func (e *UnusableResultError) Error() string {
	if e.Reason == "" {
		return "Transcription failed"
	}
	return e.Reason
}

// UnknownProfileError is returned for a profile name no worker is registered for.
type UnknownProfileError struct {
	Name string
}

func (e *UnknownProfileError) Error() string {
	return fmt.Sprintf("unknown transcription profile %q", e.Name)
}
