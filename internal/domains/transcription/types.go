package transcription

import (
	"time"

	"github.com/xpanvictor/aegyptus-stt/pkg/io/stt"
	"github.com/xpanvictor/aegyptus-stt/pkg/io/stt/whisper"
)

const (
	ProfileBaseline = "baseline"
	ProfileEnhanced = "enhanced"

	AutoLanguage = "auto"
)

// UploadedAudio is the raw clip received from a client.
type UploadedAudio struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Profile binds a worker to the limits it runs under.
type Profile struct {
	Name           string
	Runner         stt.Runner
	ModelSize      string
	MaxUploadBytes int64
	Timeout        time.Duration
}

// Request is one transcription call as seen by the Service.
type Request struct {
	Audio    *UploadedAudio
	Language string
	Profile  string
}

// Result is a successful transcription.
type Result struct {
	Success       bool              `json:"success"`
	Text          string            `json:"text"`
	Language      string            `json:"language"`
	Confidence    float64           `json:"confidence"`
	Segments      []whisper.Segment `json:"segments,omitempty"`
	Duration      float64           `json:"duration"`
	AudioDuration float64           `json:"audio_duration,omitempty"`
	Synthesized   bool              `json:"-"`
}
