package transcription

import (
	"errors"

	"github.com/xpanvictor/aegyptus-stt/pkg/io/stt/whisper"
)

// Messages shown to the user instead of a transcript.
const (
	EnvironmentFallbackText = "Speech recognition requires Python and Whisper to be installed. Please install the requirements or type your text manually."
	NoSpeechFallbackText    = "Speech recognition could not produce a transcript. Please try again or type your text manually."
	TimeoutFallbackText     = "Speech recognition timed out. Please try with a shorter audio clip."
	FailureFallbackText     = "Speech recognition temporarily unavailable. Please type your text manually."
)

type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeDegraded
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeDegraded:
		return "degraded"
	default:
		return "failed"
	}
}

// Outcome is what a request ended in. Result is set for OutcomeOK; Text and
// Language carry the fallback message otherwise.
type Outcome struct {
	Kind      OutcomeKind
	Result    Result
	Text      string
	Language  string
	Reason    string
	Err       error
	RequestID string
	States    []RequestState
}

func okOutcome(r Result) Outcome {
	return Outcome{Kind: OutcomeOK, Result: r, Text: r.Text, Language: r.Language}
}

func degradedOutcome(text, language string, err error) Outcome {
	return Outcome{
		Kind:     OutcomeDegraded,
		Text:     text,
		Language: whisper.FallbackLanguage(language),
		Reason:   reasonOf(err),
		Err:      err,
	}
}

func failedOutcome(err error) Outcome {
	text := FailureFallbackText
	var timeoutErr *whisper.TimeoutError
	if errors.As(err, &timeoutErr) {
		text = TimeoutFallbackText
	}
	return Outcome{
		Kind:     OutcomeFailed,
		Text:     text,
		Language: "en",
		Reason:   reasonOf(err),
		Err:      err,
	}
}

func reasonOf(err error) string {
	var envErr *EnvironmentUnavailableError
	if errors.As(err, &envErr) {
		return envErr.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsValidation reports whether the outcome was rejected before any work.
func (o Outcome) IsValidation() bool {
	var v *ValidationError
	return errors.As(o.Err, &v)
}

// IsTimeout reports whether the worker ran out of time.
func (o Outcome) IsTimeout() bool {
	var t *whisper.TimeoutError
	return errors.As(o.Err, &t)
}
