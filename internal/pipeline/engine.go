package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/research-agent/internal/llm"
	"github.com/jonathan/research-agent/internal/logging"
	"github.com/jonathan/research-agent/internal/search"
)

// Mode selects which events a run emits.
type Mode string

const (
	// ModeTokens emits StageStarted before each stage, ModelToken per
	// generated fragment and StageCompleted after it.
	ModeTokens Mode = "tokens"
	// ModeSnapshot emits one StateUpdated after each stage.
	ModeSnapshot Mode = "snapshot"
)

// ParseMode maps a configuration value to a Mode. Empty selects ModeTokens.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeTokens:
		return ModeTokens, nil
	case ModeSnapshot:
		return ModeSnapshot, nil
	default:
		return "", fmt.Errorf("unknown stream mode %q", s)
	}
}

// EventKind tags an Event.
type EventKind string

const (
	EventStageStarted   EventKind = "stage_started"
	EventModelToken     EventKind = "model_token"
	EventStageCompleted EventKind = "stage_completed"
	EventStateUpdated   EventKind = "state_updated"
)

// Event is one item of a run's event sequence. Token is set for
// EventModelToken and Partial for EventStageCompleted and EventStateUpdated.
type Event struct {
	Kind    EventKind
	Stage   string
	Token   string
	Partial Update
}

// ErrAlreadyConsumed is yielded when a run's sequence is ranged over twice.
var ErrAlreadyConsumed = errors.New("pipeline: run already consumed")

// StageError wraps a failure that aborted a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Engine runs the stages in order for one topic at a time. An Engine holds no
// per-run state and is safe for concurrent Runs.
type Engine struct {
	deps   Deps
	mode   Mode
	stages []StageDefinition
	logger *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMode sets the event mode. The default is ModeTokens.
func WithMode(m Mode) Option {
	return func(e *Engine) { e.mode = m }
}

// WithLogger sets the logger handed to stages when the run context does not
// carry one.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// withStages replaces the default research and write stages in tests.
func withStages(stages ...StageDefinition) Option {
	return func(e *Engine) { e.stages = stages }
}

// NewEngine creates an engine over the given providers.
func NewEngine(searcher search.Provider, generator llm.Client, opts ...Option) *Engine {
	e := &Engine{
		deps:   Deps{Search: searcher, LLM: generator, Tier: llm.TierAdvanced},
		mode:   ModeTokens,
		stages: DefaultStages(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mode reports the engine's event mode.
func (e *Engine) Mode() Mode { return e.mode }

// Run returns the lazy event sequence of one run. Nothing executes until the
// sequence is ranged over, and it may be ranged over only once. A stage
// failure ends the sequence with a *StageError. Breaking out of the loop
// stops the run at the next event.
func (e *Engine) Run(ctx context.Context, topic string) iter.Seq2[Event, error] {
	var consumed atomic.Bool
	return func(yield func(Event, error) bool) {
		if consumed.Swap(true) {
			yield(Event{}, ErrAlreadyConsumed)
			return
		}
		if err := ValidateOrder(e.stages); err != nil {
			yield(Event{}, err)
			return
		}

		state := NewState(topic)
		for _, def := range e.stages {
			if err := ctx.Err(); err != nil {
				yield(Event{}, &StageError{Stage: def.Name, Err: err})
				return
			}

			next, ok := e.runStage(ctx, def, state, yield)
			if !ok {
				return
			}
			state = next
		}
	}
}

// runStage executes one stage and emits its events. It reports false when
// the sequence must end, either because the consumer stopped or because the
// stage failed and the error was yielded.
func (e *Engine) runStage(ctx context.Context, def StageDefinition, state State, yield func(Event, error) bool) (State, bool) {
	logger := logging.FromContext(ctx, e.logger).With(zap.String("stage", def.Name))
	deps := e.deps
	deps.Logger = logger

	var onToken TokenFunc
	stopped := false
	if e.mode == ModeTokens {
		if !yield(Event{Kind: EventStageStarted, Stage: def.Name}, nil) {
			return state, false
		}
		onToken = func(fragment string) bool {
			// yield must not be called again once it returned false.
			if stopped {
				return false
			}
			stopped = !yield(Event{Kind: EventModelToken, Stage: def.Name, Token: fragment}, nil)
			return !stopped
		}
	}

	start := time.Now()
	update, err := def.Run(ctx, deps, state, onToken)
	if stopped || errors.Is(err, errStopped) {
		return state, false
	}
	if err != nil {
		logger.Error("stage failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		yield(Event{}, &StageError{Stage: def.Name, Err: err})
		return state, false
	}
	logger.Info("stage complete",
		zap.Duration("duration", time.Since(start)),
		zap.Int("logs", len(update.Logs)),
		zap.Int("report_chars", len(update.Report)))

	state = state.Apply(update)
	kind := EventStageCompleted
	if e.mode == ModeSnapshot {
		kind = EventStateUpdated
	}
	if !yield(Event{Kind: kind, Stage: def.Name, Partial: update.Clone()}, nil) {
		return state, false
	}
	return state, true
}
