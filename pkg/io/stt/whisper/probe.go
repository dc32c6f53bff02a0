package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/xpanvictor/aegyptus-stt/pkg/Logger"
)

// ProbeCanceledReason is reported when the caller gave up before the check finished.
const ProbeCanceledReason = "environment check canceled"

const (
	probeSentinel      = "OK"
	probeTimeoutReason = "environment check timeout"
	defaultProbeTime   = 10 * time.Second
	waitDelay          = 500 * time.Millisecond
)

// ProbeReport is the result of one environment check.
type ProbeReport struct {
	Available bool      `json:"available"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Prober runs a short interpreter command that imports the speech modules and
// prints a sentinel. The environment counts as available only when the command
// exits cleanly and the sentinel shows up on stdout.
type Prober struct {
	command  string
	args     []string
	sentinel string
	timeout  time.Duration
	logger   *Logger.Logger
	now      func() time.Time
}

func NewProber(interpreter string, modules []string, timeout time.Duration, logger *Logger.Logger) *Prober {
	if len(modules) == 0 {
		modules = []string{"whisper", "torch"}
	}
	code := fmt.Sprintf("import %s; print('%s')", strings.Join(modules, ", "), probeSentinel)
	return newProber(interpreter, []string{"-c", code}, probeSentinel, timeout, logger)
}

// NewProberForTests lets tests swap the python one-liner for any command.
func NewProberForTests(command string, args []string, sentinel string, timeout time.Duration, logger *Logger.Logger) *Prober {
	return newProber(command, args, sentinel, timeout, logger)
}

func newProber(command string, args []string, sentinel string, timeout time.Duration, logger *Logger.Logger) *Prober {
	if timeout <= 0 {
		timeout = defaultProbeTime
	}
	if logger == nil {
		logger = Logger.NewNop()
	}
	return &Prober{
		command:  command,
		args:     args,
		sentinel: sentinel,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

func (p *Prober) Timeout() time.Duration { return p.timeout }

// Check never returns an error: every failure mode becomes an unavailable report.
func (p *Prober) Check(ctx context.Context) ProbeReport {
	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, p.command, p.args...)
	configureProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	var stdout bytes.Buffer
	stderr := newTailBuffer(4 * 1024)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	report := ProbeReport{CheckedAt: p.now()}

	switch {
	case err == nil && strings.Contains(stdout.String(), p.sentinel):
		report.Available = true
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		report.Error = probeTimeoutReason
	case ctx.Err() != nil:
		report.Error = ProbeCanceledReason
	case err != nil:
		report.Error = probeFailureReason(err, stderr.String())
	default:
		report.Error = "environment check did not confirm speech modules"
	}

	if report.Available {
		p.logger.Debugf("speech environment available (%s)", p.command)
	} else {
		p.logger.Warnf("speech environment unavailable: %s", report.Error)
	}
	return report
}

func probeFailureReason(err error, stderr string) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if stderr != "" {
			return fmt.Sprintf("environment check failed (exit %d): %s", exitErr.ExitCode(), lastLine(stderr))
		}
		return fmt.Sprintf("environment check failed (exit %d)", exitErr.ExitCode())
	}
	return fmt.Sprintf("environment check could not start: %v", err)
}

// lastLine keeps python tracebacks readable: the final line names the missing module.
func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
