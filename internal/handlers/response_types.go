package handlers

import (
	"github.com/xpanvictor/aegyptus-stt/internal/domains/transcription"
	"github.com/xpanvictor/aegyptus-stt/pkg/io/stt/whisper"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"Audio file is empty"`
	Details string `json:"details,omitempty" example:"multipart: NextPart: EOF"`
}

// TranscriptionResponse is a successful transcription
type TranscriptionResponse struct {
	Text          string            `json:"text" example:"hello world"`
	Language      string            `json:"language" example:"en"`
	Confidence    float64           `json:"confidence" example:"0.92"`
	Duration      float64           `json:"duration" example:"1.8"`
	AudioDuration float64           `json:"audio_duration,omitempty" example:"4.2"`
	Segments      []whisper.Segment `json:"segments,omitempty"`
}

// FallbackResponse tells the client to fall back to manual text entry.
// Confidence is always zero and always present.
type FallbackResponse struct {
	Text       string  `json:"text"`
	Language   string  `json:"language" example:"en"`
	Confidence float64 `json:"confidence" example:"0"`
	Fallback   bool    `json:"fallback" example:"true"`
	Error      string  `json:"error,omitempty"`
}

// SynthesizeRequest is the body of a speech synthesis call
type SynthesizeRequest struct {
	Text     string  `json:"text" example:"Welcome to the temple of Karnak"`
	Language string  `json:"language,omitempty" example:"en"`
	Voice    string  `json:"voice,omitempty" example:"female"`
	Speed    float64 `json:"speed,omitempty" example:"1.0"`
}

// SynthesizeResponse always asks the browser to speak the text itself
type SynthesizeResponse struct {
	Fallback bool   `json:"fallback" example:"true"`
	Message  string `json:"message,omitempty" example:"Using client-side speech synthesis"`
	Error    string `json:"error,omitempty"`
}

// StatusResponse reports the speech runtime state
type StatusResponse struct {
	Environment whisper.ProbeReport `json:"environment"`
	Profiles    []string            `json:"profiles"`
}

func newTranscriptionResponse(r transcription.Result) TranscriptionResponse {
	return TranscriptionResponse{
		Text:          r.Text,
		Language:      r.Language,
		Confidence:    r.Confidence,
		Duration:      r.Duration,
		AudioDuration: r.AudioDuration,
		Segments:      r.Segments,
	}
}
