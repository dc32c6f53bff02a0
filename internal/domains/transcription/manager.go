package transcription

import (
	"context"

	"github.com/xpanvictor/aegyptus-stt/pkg/Logger"
	"github.com/xpanvictor/aegyptus-stt/pkg/io/stt/whisper"
)

// Manager runs exactly one worker per staged file and owns the file's cleanup.
type Manager struct {
	logger *Logger.Logger
}

func NewManager(logger *Logger.Logger) *Manager {
	if logger == nil {
		logger = Logger.NewNop()
	}
	return &Manager{logger: logger}
}

// Transcribe runs the profile's worker on the staged file. The file is gone
// when Transcribe returns, whatever the result.
func (m *Manager) Transcribe(ctx context.Context, staged *StagedFile, language string, profile Profile) (Result, error) {
	defer staged.Remove()

	if language == "" {
		language = AutoLanguage
	}
	out, err := profile.Runner.Run(ctx, whisper.Job{
		AudioPath:  staged.Path,
		Language:   language,
		ModelSize:  profile.ModelSize,
		Timeout:    profile.Timeout,
		ScratchDir: staged.Dir(),
		ID:         staged.ID,
	})
	if err != nil {
		return Result{}, err
	}
	if out.ParseErr != nil {
		m.logger.Warnf("%v, using raw output as transcript", out.ParseErr)
	}
	if !out.Reply.Usable() {
		return Result{}, &UnusableResultError{Reason: out.Reply.Error}
	}

	return toResult(out, language), nil
}

func toResult(out whisper.Output, language string) Result {
	reply := out.Reply
	lang := reply.Language
	if lang == "" {
		lang = whisper.FallbackLanguage(language)
	}
	return Result{
		Success:       true,
		Text:          reply.Text,
		Language:      lang,
		Confidence:    clamp01(reply.Confidence),
		Segments:      reply.Segments,
		Duration:      out.Elapsed.Seconds(),
		AudioDuration: reply.Duration,
		Synthesized:   out.Synthesized,
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
