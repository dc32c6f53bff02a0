package transcription

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/xpanvictor/aegyptus-stt/pkg/io/stt/whisper"
)

// fakeChecker returns report. With a gate it first signals started and then
// blocks until the gate closes or its context ends.
type fakeChecker struct {
	report  whisper.ProbeReport
	calls   atomic.Int32
	gate    chan struct{}
	started chan struct{}
}

func (f *fakeChecker) Check(ctx context.Context) whisper.ProbeReport {
	f.calls.Add(1)
	if f.gate == nil {
		return f.report
	}
	if f.started != nil {
		close(f.started)
	}
	select {
	case <-f.gate:
		return f.report
	case <-ctx.Done():
		return whisper.ProbeReport{Error: whisper.ProbeCanceledReason}
	}
}

// fakeRunner records what it was asked to do and whether the audio existed.
type fakeRunner struct {
	mu       sync.Mutex
	jobs     []whisper.Job
	sawAudio bool
	run      func(ctx context.Context, job whisper.Job) (whisper.Output, error)
}

func (f *fakeRunner) Run(ctx context.Context, job whisper.Job) (whisper.Output, error) {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	if _, err := os.Stat(job.AudioPath); err == nil {
		f.sawAudio = true
	}
	f.mu.Unlock()
	if f.run == nil {
		return replyOutput(whisper.Reply{Text: "hello", Language: "en", Confidence: 0.9}), nil
	}
	return f.run(ctx, job)
}

func (f *fakeRunner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.jobs)
}

func replyOutput(r whisper.Reply) whisper.Output {
	return whisper.Output{Reply: r, State: whisper.StateExitedOK}
}
