package app

import (
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/xpanvictor/aegyptus-stt/internal/config"
	"github.com/xpanvictor/aegyptus-stt/internal/domains/transcription"
	"github.com/xpanvictor/aegyptus-stt/internal/server"
	"github.com/xpanvictor/aegyptus-stt/pkg/Logger"
	"github.com/xpanvictor/aegyptus-stt/pkg/io/stt/whisper"
)

// App represents the application with all its dependencies
type App struct {
	Config  *config.Settings
	Logger  *Logger.Logger
	RC      *redis.Client
	Scratch *transcription.ScratchArea
	Prober  *transcription.CachedProber
	Service transcription.TranscriptionService

	ServerDeps server.Dependencies
}

// NewApp wires the transcription stack. rc may be nil when redis is disabled.
func NewApp(cfg *config.Settings, logger *Logger.Logger, rc *redis.Client) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
		RC:     rc,
	}

	if err := app.setupDependencies(); err != nil {
		return nil, err
	}

	return app, nil
}

func (a *App) setupDependencies() error {
	speech := a.Config.Speech

	// 1. scratch area, cleared of anything a previous run left behind
	a.Scratch = transcription.NewScratchArea(speech.ScratchRoot, speech.Namespace, a.Logger)
	if err := a.Scratch.Ensure(); err != nil {
		return err
	}
	if speech.SweepAfterMins > 0 {
		if _, err := a.Scratch.Sweep(time.Duration(speech.SweepAfterMins) * time.Minute); err != nil {
			a.Logger.Warnf("startup sweep failed: %v", err)
		}
	}

	// 2. environment probe
	probe := whisper.NewProber(speech.Probe.Interpreter, speech.Probe.Modules, speech.Probe.Timeout(), a.Logger)
	var cache transcription.ProbeCache
	if a.RC != nil {
		cache = transcription.NewRedisProbeCache(a.RC, a.Logger)
	} else {
		cache = transcription.NewMemoryProbeCache()
	}
	a.Prober = transcription.NewCachedProber(probe, cache, speech.Probe.CacheTTL())

	// 3. worker profiles
	profiles := []transcription.Profile{
		a.profile(transcription.ProfileBaseline, speech.Baseline),
		a.profile(transcription.ProfileEnhanced, speech.Enhanced),
	}
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.Name)
	}

	a.Service = transcription.NewService(
		a.Prober,
		a.Scratch,
		transcription.NewManager(a.Logger),
		profiles,
		transcription.ServiceOptions{
			MaxConcurrentWorkers: speech.MaxConcurrentWorkers,
			CancelOnDisconnect:   speech.CancelOnDisconnect,
		},
		a.Logger,
	)

	a.ServerDeps = server.NewServerDependencies(a.Service, names, a.Logger, a.Config)
	a.Logger.Infof("transcription ready: scratch=%s workers=%d profiles=%v",
		a.Scratch.Dir(), speech.MaxConcurrentWorkers, names)
	return nil
}

func (a *App) profile(name string, cfg config.WorkerProfile) transcription.Profile {
	worker := whisper.NewWorker(cfg.Interpreter, cfg.Script, a.Config.Speech.StderrTailBytes, a.Logger.With("profile", name)).
		WithArgs(cfg.Args)
	return transcription.Profile{
		Name:           name,
		Runner:         worker,
		ModelSize:      cfg.ModelSize,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Timeout:        cfg.Timeout(),
	}
}

// GetServerDependencies returns the server dependencies
func (a *App) GetServerDependencies() server.Dependencies {
	return a.ServerDeps
}

func (a *App) Close() error {
	if a.RC != nil {
		if err := a.RC.Close(); err != nil {
			return fmt.Errorf("failed to close redis: %w", err)
		}
	}
	return nil
}
