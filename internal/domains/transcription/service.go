package transcription

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/xpanvictor/aegyptus-stt/pkg/Logger"
	"github.com/xpanvictor/aegyptus-stt/pkg/io/stt"
	"github.com/xpanvictor/aegyptus-stt/pkg/io/stt/whisper"
	"golang.org/x/sync/semaphore"
)

type ServiceOptions struct {
	// MaxConcurrentWorkers caps running workers; 0 means no cap.
	MaxConcurrentWorkers int
	// CancelOnDisconnect kills the worker when the caller goes away.
	CancelOnDisconnect bool
}

// TranscriptionService turns an upload into an Outcome.
type TranscriptionService interface {
	Handle(ctx context.Context, req Request) Outcome
	Status(ctx context.Context) whisper.ProbeReport
}

type transcriptionService struct {
	prober   stt.EnvironmentChecker
	scratch  *ScratchArea
	manager  *Manager
	profiles map[string]Profile
	slots    *semaphore.Weighted
	opts     ServiceOptions
	logger   *Logger.Logger
}

func NewService(
	prober stt.EnvironmentChecker,
	scratch *ScratchArea,
	manager *Manager,
	profiles []Profile,
	opts ServiceOptions,
	logger *Logger.Logger,
) TranscriptionService {
	if logger == nil {
		logger = Logger.NewNop()
	}
	byName := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		byName[p.Name] = p
	}
	var slots *semaphore.Weighted
	if opts.MaxConcurrentWorkers > 0 {
		slots = semaphore.NewWeighted(int64(opts.MaxConcurrentWorkers))
	}
	return &transcriptionService{
		prober:   prober,
		scratch:  scratch,
		manager:  manager,
		profiles: byName,
		slots:    slots,
		opts:     opts,
		logger:   logger,
	}
}

func (s *transcriptionService) Status(ctx context.Context) whisper.ProbeReport {
	return s.prober.Check(ctx)
}

// Handle never panics on bad input and never leaves a staged file behind.
func (s *transcriptionService) Handle(ctx context.Context, req Request) (outcome Outcome) {
	requestID := uuid.NewString()
	log := s.logger.With("request_id", requestID, "profile", req.Profile)
	lc := newLifecycle(log)
	defer func() {
		outcome.RequestID = requestID
		outcome.States = lc.Trail()
		log.Infof("transcription request finished: %s (%s)", outcome.Kind, lc.Current())
	}()

	profile, ok := s.profiles[req.Profile]
	if !ok {
		lc.finish(ctx, eventFail)
		return failedOutcome(&UnknownProfileError{Name: req.Profile})
	}
	if req.Audio == nil {
		lc.finish(ctx, eventFail)
		return failedOutcome(&ValidationError{Field: "audio", Reason: "No audio file provided"})
	}
	log.Infof("audio received: %s, %d bytes, type %s", req.Audio.Filename, len(req.Audio.Data), req.Audio.ContentType)
	if err := ValidateUpload(*req.Audio, profile.MaxUploadBytes); err != nil {
		lc.finish(ctx, eventFail)
		return failedOutcome(err)
	}
	language, err := ValidateLanguage(req.Language)
	if err != nil {
		lc.finish(ctx, eventFail)
		return failedOutcome(err)
	}

	report := s.prober.Check(ctx)
	lc.fire(ctx, eventCheckEnv)
	if !report.Available {
		log.Warnf("speech environment not available: %s", report.Error)
		lc.fire(ctx, eventRespond)
		return degradedOutcome(EnvironmentFallbackText, language, &EnvironmentUnavailableError{Reason: report.Error})
	}

	workCtx := ctx
	if !s.opts.CancelOnDisconnect {
		workCtx = context.WithoutCancel(ctx)
	}

	release, err := s.acquire(workCtx)
	if err != nil {
		lc.finish(ctx, eventFail)
		return failedOutcome(&whisper.CanceledError{Err: err})
	}
	defer release()

	staged, err := s.scratch.Stage(*req.Audio, profile.MaxUploadBytes)
	if err != nil {
		log.Errorf("failed to stage audio: %v", err)
		lc.finish(ctx, eventFail)
		return failedOutcome(err)
	}
	lc.fire(ctx, eventStage)

	lc.fire(ctx, eventTranscribe)
	result, err := s.manager.Transcribe(workCtx, staged, language, profile)
	if err != nil {
		lc.finish(ctx, eventFail)
		var unusable *UnusableResultError
		if errors.As(err, &unusable) {
			log.Warnf("transcription produced no usable result: %v", err)
			return degradedOutcome(NoSpeechFallbackText, language, err)
		}
		log.Errorf("transcription failed: %v", err)
		return failedOutcome(err)
	}

	lc.finish(ctx, eventSucceed)
	log.Infof("transcription succeeded: %d chars, language %s, confidence %.2f", len(result.Text), result.Language, result.Confidence)
	return okOutcome(result)
}

func (s *transcriptionService) acquire(ctx context.Context) (func(), error) {
	if s.slots == nil {
		return func() {}, nil
	}
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { s.slots.Release(1) }, nil
}
