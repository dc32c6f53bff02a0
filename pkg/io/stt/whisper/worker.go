package whisper

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/xpanvictor/aegyptus-stt/pkg/Logger"
)

const (
	DefaultTimeout   = 60 * time.Second
	DefaultModelSize = "base"
)

// ProcessState is the last state a worker run reached.
type ProcessState string

const (
	StateSpawned     ProcessState = "spawned"
	StateCollecting  ProcessState = "collecting"
	StateExitedOK    ProcessState = "exited_ok"
	StateExitedError ProcessState = "exited_error"
	StateTimedOut    ProcessState = "timed_out"
	StateCanceled    ProcessState = "canceled"
	StateSpawnFailed ProcessState = "spawn_failed"
)

// DefaultArgs is the argument template used when a worker is given none.
var DefaultArgs = []string{"{audio}", "{language}", "{model}"}

// Job is one transcription request for the worker. ScratchDir and ID name a
// directory and a stem the worker may use for intermediate files.
type Job struct {
	AudioPath  string
	Language   string
	ModelSize  string
	Timeout    time.Duration
	ScratchDir string
	ID         string
}

func (j Job) language() string {
	if j.Language == "" {
		return "auto"
	}
	return j.Language
}

func (j Job) modelSize() string {
	if j.ModelSize == "" {
		return DefaultModelSize
	}
	return j.ModelSize
}

func (j Job) timeout() time.Duration {
	if j.Timeout <= 0 {
		return DefaultTimeout
	}
	return j.Timeout
}

// Worker runs `<interpreter> <script> <args...>` once per job. The args are a
// template: {audio}, {language}, {model}, {scratch} and {id} are replaced with
// the job's values. With an empty interpreter the script is executed directly.
type Worker struct {
	interpreter string
	script      string
	args        []string
	tailBytes   int
	logger      *Logger.Logger
}

func NewWorker(interpreter, script string, tailBytes int, logger *Logger.Logger) *Worker {
	if logger == nil {
		logger = Logger.NewNop()
	}
	return &Worker{
		interpreter: interpreter,
		script:      script,
		args:        DefaultArgs,
		tailBytes:   tailBytes,
		logger:      logger,
	}
}

// WithArgs replaces the argument template. An empty template keeps DefaultArgs.
func (w *Worker) WithArgs(template []string) *Worker {
	if len(template) > 0 {
		w.args = append([]string(nil), template...)
	}
	return w
}

func (w *Worker) command(job Job) (string, []string) {
	r := strings.NewReplacer(
		"{audio}", job.AudioPath,
		"{language}", job.language(),
		"{model}", job.modelSize(),
		"{scratch}", job.ScratchDir,
		"{id}", job.ID,
	)
	args := make([]string, len(w.args))
	for i, a := range w.args {
		args[i] = r.Replace(a)
	}
	if w.interpreter == "" {
		return w.script, args
	}
	return w.interpreter, append([]string{w.script}, args...)
}

// Run spawns the worker and waits for it. A clean exit always yields an
// Output: unparseable stdout is turned into a synthesized reply. The error is
// one of SpawnError, WorkerError, TimeoutError or CanceledError.
func (w *Worker) Run(ctx context.Context, job Job) (Output, error) {
	start := time.Now()
	limit := job.timeout()
	runCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	name, args := w.command(job)
	log := w.logger.With("worker", w.script, "audio", job.AudioPath)

	cmd := exec.CommandContext(runCtx, name, args...)
	configureProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	stdout := &lineWriter{onLine: func(line string) { log.Debugf("worker stdout: %s", line) }}
	stderrLog := &lineWriter{onLine: func(line string) { log.Debugf("worker stderr: %s", line) }}
	stderr := newTailBuffer(w.tailBytes)
	cmd.Stdout = stdout
	cmd.Stderr = io.MultiWriter(stderr, stderrLog)

	out := Output{State: StateSpawned}
	finish := func(state ProcessState, err error) (Output, error) {
		stdout.Flush()
		stderrLog.Flush()
		out.State = state
		out.Stdout = stdout.Lines()
		out.Stderr = stderr.String()
		out.Elapsed = time.Since(start)
		if err != nil {
			log.Warnf("whisper worker %s after %s: %v", state, out.Elapsed, err)
		} else {
			log.Debugf("whisper worker %s after %s", state, out.Elapsed)
		}
		return out, err
	}

	if err := cmd.Start(); err != nil {
		return finish(StateSpawnFailed, &SpawnError{Command: name, Err: err})
	}
	out.State = StateCollecting
	log.Debugf("whisper worker started pid=%d", cmd.Process.Pid)

	waitErr := cmd.Wait()
	switch {
	case waitErr == nil:
		stdout.Flush()
		lines := stdout.Lines()
		if reply, ok := parseReply(lines); ok {
			out.Reply = reply
		} else {
			out.Reply = synthesizeReply(lines, job.Language)
			out.Synthesized = true
			out.ParseErr = &ParseError{Stdout: strings.Join(lines, "\n")}
		}
		return finish(StateExitedOK, nil)
	case ctx.Err() != nil:
		return finish(StateCanceled, &CanceledError{Err: ctx.Err()})
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return finish(StateTimedOut, &TimeoutError{Limit: limit})
	default:
		code := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		return finish(StateExitedError, &WorkerError{ExitCode: code, Stderr: stderr.String(), Err: waitErr})
	}
}
