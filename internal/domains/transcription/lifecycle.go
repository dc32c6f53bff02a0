package transcription

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/xpanvictor/aegyptus-stt/pkg/Logger"
)

type RequestState string

const (
	StateReceived     RequestState = "received"
	StateEnvChecked   RequestState = "env_checked"
	StateStaged       RequestState = "staged"
	StateTranscribing RequestState = "transcribing"
	StateSucceeded    RequestState = "succeeded"
	StateFailed       RequestState = "failed"
	StateCleanedUp    RequestState = "cleaned_up"
	StateResponded    RequestState = "responded"
)

const (
	eventCheckEnv   = "check_env"
	eventStage      = "stage"
	eventTranscribe = "transcribe"
	eventSucceed    = "succeed"
	eventFail       = "fail"
	eventCleanUp    = "clean_up"
	eventRespond    = "respond"
)

// lifecycle tracks one request through
//
//	received -> env_checked -> staged -> transcribing -> (succeeded || failed) -> cleaned_up -> responded
//
// env_checked may jump straight to responded when the environment is
// unavailable. Every state entered is recorded in trail.
type lifecycle struct {
	machine *fsm.FSM
	trail   []RequestState
	logger  *Logger.Logger
}

func newLifecycle(logger *Logger.Logger) *lifecycle {
	lc := &lifecycle{
		trail:  []RequestState{StateReceived},
		logger: logger,
	}
	lc.machine = fsm.NewFSM(
		string(StateReceived),
		fsm.Events{
			{Name: eventCheckEnv, Src: []string{string(StateReceived)}, Dst: string(StateEnvChecked)},
			{Name: eventStage, Src: []string{string(StateEnvChecked)}, Dst: string(StateStaged)},
			{Name: eventTranscribe, Src: []string{string(StateStaged)}, Dst: string(StateTranscribing)},
			{Name: eventSucceed, Src: []string{string(StateTranscribing)}, Dst: string(StateSucceeded)},
			{Name: eventFail, Src: []string{
				string(StateReceived),
				string(StateEnvChecked),
				string(StateStaged),
				string(StateTranscribing),
			}, Dst: string(StateFailed)},
			{Name: eventCleanUp, Src: []string{string(StateSucceeded), string(StateFailed)}, Dst: string(StateCleanedUp)},
			{Name: eventRespond, Src: []string{string(StateCleanedUp), string(StateEnvChecked)}, Dst: string(StateResponded)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				lc.trail = append(lc.trail, RequestState(e.Dst))
				lc.logger.Debugf("request %s -> %s", e.Src, e.Dst)
			},
		},
	)
	return lc
}

func (lc *lifecycle) fire(ctx context.Context, event string) {
	// the request context may already be canceled; transitions must still happen
	if err := lc.machine.Event(context.WithoutCancel(ctx), event); err != nil {
		lc.logger.Errorf("invalid request transition %q from %s: %v", event, lc.machine.Current(), err)
	}
}

// finish drives a failed or succeeded request through cleanup to responded.
func (lc *lifecycle) finish(ctx context.Context, outcome string) {
	lc.fire(ctx, outcome)
	lc.fire(ctx, eventCleanUp)
	lc.fire(ctx, eventRespond)
}

func (lc *lifecycle) Current() RequestState {
	return RequestState(lc.machine.Current())
}

func (lc *lifecycle) Trail() []RequestState {
	return append([]RequestState(nil), lc.trail...)
}
