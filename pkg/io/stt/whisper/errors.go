package whisper

import (
	"fmt"
	"time"
)

// SpawnError means the worker process could not be started at all.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start whisper worker %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// WorkerError means the worker ran and exited with a non-zero status.
type WorkerError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *WorkerError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("whisper worker exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("whisper worker exited with code %d: %s", e.ExitCode, e.Stderr)
}

func (e *WorkerError) Unwrap() error { return e.Err }

// TimeoutError means the worker exceeded its wall-clock budget and was killed.
type TimeoutError struct {
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("whisper transcription timeout (%s)", e.Limit)
}

// CanceledError means the caller went away and the worker was killed early.
type CanceledError struct {
	Err error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("whisper transcription canceled: %v", e.Err)
}

func (e *CanceledError) Unwrap() error { return e.Err }

// ParseError is never returned to callers of Worker.Run; the output is
// synthesized instead. It is exposed through Output.ParseErr for logging.
type ParseError struct {
	Stdout string
}

func (e *ParseError) Error() string {
	return "no parseable JSON line in whisper output"
}
