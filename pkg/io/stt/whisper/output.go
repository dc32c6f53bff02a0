package whisper

import (
	"encoding/json"
	"strings"
	"time"
)

// SynthesizedConfidence is reported when the worker printed plain text
// instead of a JSON reply.
const SynthesizedConfidence = 0.3

// Word is a single timed word, only produced by the enhanced worker.
type Word struct {
	Word        string  `json:"word"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Probability float64 `json:"probability,omitempty"`
}

// Segment is a timed chunk of the transcript.
type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	Words      []Word  `json:"words,omitempty"`
}

// Reply is the JSON object a worker prints as its last stdout line.
// Success is a pointer because the enhanced worker omits the field.
type Reply struct {
	Success    *bool     `json:"success,omitempty"`
	Text       string    `json:"text"`
	Language   string    `json:"language"`
	Confidence float64   `json:"confidence"`
	Duration   float64   `json:"duration,omitempty"`
	Segments   []Segment `json:"segments,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Usable reports whether the reply carries a transcript worth returning.
// A missing success flag counts as success.
func (r Reply) Usable() bool {
	if r.Success != nil && !*r.Success {
		return false
	}
	return strings.TrimSpace(r.Text) != ""
}

// Output is everything a finished worker run produced.
type Output struct {
	Reply       Reply
	Synthesized bool
	ParseErr    error
	State       ProcessState
	Stdout      []string
	Stderr      string
	Elapsed     time.Duration
}

// parseReply scans stdout from the last line backwards and returns the first
// line that looks like a JSON object and decodes. Progress noise and broken
// JSON lines are skipped.
func parseReply(lines []string) (Reply, bool) {
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var r Reply
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			continue
		}
		return r, true
	}
	return Reply{}, false
}

// synthesizeReply treats raw stdout as the transcript.
func synthesizeReply(lines []string, language string) Reply {
	ok := true
	return Reply{
		Success:    &ok,
		Text:       strings.TrimSpace(strings.Join(lines, "\n")),
		Language:   FallbackLanguage(language),
		Confidence: SynthesizedConfidence,
	}
}

// FallbackLanguage is the language reported when the worker did not say:
// the requested one, or English when detection was requested.
func FallbackLanguage(requested string) string {
	if requested == "" || requested == "auto" {
		return "en"
	}
	return requested
}
