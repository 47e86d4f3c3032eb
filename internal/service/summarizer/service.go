package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lexibrief/internal/config"
	"lexibrief/internal/models"
	"lexibrief/internal/worker"
)

var ErrEmptySummary = errors.New("model returned an empty summary")

const readyTimeout = 2 * time.Minute

// readinessChecker is implemented by engines that can verify, once at
// startup, that the model behind them answers.
type readinessChecker interface {
	Ready(ctx context.Context) error
}

// Dispatcher runs tasks against the shared engine. *worker.Dispatcher
// satisfies it.
type Dispatcher interface {
	Submit(ctx context.Context, task worker.Task) (string, error)
}

// Service is the process-wide summarizer. A nil *Service means the engine
// could not be initialized and every call reports models.ErrUnavailable.
type Service struct {
	engine     Engine
	dispatcher Dispatcher
}

// Initialize builds the configured engine once at startup and, when the
// engine supports it, checks that the model answers. On failure the returned
// error wraps models.ErrUnavailable and the service is nil.
func Initialize(ctx context.Context, cfg *config.Config, dispatcher Dispatcher) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: missing configuration", models.ErrUnavailable)
	}
	engine, err := newEngine(ctx, cfg.Summarizer.Provider, cfg.Provider())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
	}
	if checker, ok := engine.(readinessChecker); ok {
		readyCtx, cancel := context.WithTimeout(ctx, readyTimeout)
		err := checker.Ready(readyCtx)
		cancel()
		if err != nil {
			if errors.Is(err, models.ErrUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", models.ErrUnavailable, err)
		}
	}
	log.Info().Str("engine", engine.Name()).Msg("summarizer initialized")
	return NewService(engine, dispatcher), nil
}

// NewService wraps an already constructed engine. A nil dispatcher runs the
// engine on the calling goroutine.
func NewService(engine Engine, dispatcher Dispatcher) *Service {
	if engine == nil {
		return nil
	}
	return &Service{engine: engine, dispatcher: dispatcher}
}

func (s *Service) Available() bool {
	return s != nil && s.engine != nil
}

func (s *Service) Name() string {
	if !s.Available() {
		return ""
	}
	return s.engine.Name()
}

// Summarize validates req, runs it through the dispatcher and returns the
// trimmed summary.
func (s *Service) Summarize(ctx context.Context, req models.SummaryRequest) (string, error) {
	if !s.Available() {
		return "", models.ErrUnavailable
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	task := func(ctx context.Context) (string, error) {
		return s.engine.Summarize(ctx, req.Text, req.MinLength, req.MaxLength)
	}

	var (
		out string
		err error
	)
	if s.dispatcher != nil {
		out, err = s.dispatcher.Submit(ctx, task)
	} else {
		out, err = runGuarded(ctx, task)
	}
	if err != nil {
		if errors.Is(err, worker.ErrDispatcherBusy) {
			return "", fmt.Errorf("%w: %v", models.ErrBusy, err)
		}
		return "", err
	}

	summary := strings.TrimSpace(out)
	if summary == "" {
		return "", ErrEmptySummary
	}
	return summary, nil
}

func runGuarded(ctx context.Context, task worker.Task) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("inference task panicked: %v", r)
		}
	}()
	return task(ctx)
}
