package stt

import (
	"context"

	"github.com/xpanvictor/aegyptus-stt/pkg/io/stt/whisper"
)

// Runner executes one transcription job against a local model.
type Runner interface {
	Run(ctx context.Context, job whisper.Job) (whisper.Output, error)
}

// EnvironmentChecker reports whether the speech runtime can be used at all.
type EnvironmentChecker interface {
	Check(ctx context.Context) whisper.ProbeReport
}

var (
	_ Runner             = (*whisper.Worker)(nil)
	_ EnvironmentChecker = (*whisper.Prober)(nil)
)
