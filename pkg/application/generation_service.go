package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/qualify/pkg/domain/ai"
	"github.com/felixgeelhaar/qualify/pkg/domain/generation"
	"github.com/felixgeelhaar/qualify/pkg/domain/prompt"
	"github.com/felixgeelhaar/qualify/pkg/domain/questions"
)

// DebugEnv enables raw reply dumps on stderr.
const DebugEnv = "QUALIFY_AI_DEBUG"

// AttemptEvent describes one attempt of a run.
type AttemptEvent struct {
	RunID       string
	Attempt     int
	MaxAttempts int
	Requested   int
	Received    int
	State       string
	Err         error
}

// Observer follows a run as it progresses. Implementations must not block.
type Observer interface {
	AttemptStarted(AttemptEvent)
	AttemptFinished(AttemptEvent)
	RunFinished(res *generation.Result, err error)
}

// HistoryRecorder stores completed runs.
type HistoryRecorder interface {
	Append(req generation.Request, res *generation.Result) error
}

// GenerationService renders a template, asks the provider for a reply and
// parses it, repeating the whole attempt while the record count is short of
// what was requested. Only a count mismatch is retried; every other failure
// ends the run.
//
// The service keeps no per-run state and may be shared across goroutines.
type GenerationService struct {
	provider    ai.Provider
	templates   *prompt.Registry
	logger      *slog.Logger
	history     HistoryRecorder
	observers   []Observer
	maxAttempts int
	debug       io.Writer
}

func NewGenerationService(provider ai.Provider, templates *prompt.Registry, logger *slog.Logger) *GenerationService {
	if logger == nil {
		logger = slog.Default()
	}
	if templates == nil {
		templates = prompt.NewRegistry()
	}
	s := &GenerationService{
		provider:    provider,
		templates:   templates,
		logger:      logger,
		maxAttempts: generation.MaxAttempts,
	}
	if os.Getenv(DebugEnv) != "" {
		s.debug = os.Stderr
	}
	return s
}

// WithHistory records every completed run in h.
func (s *GenerationService) WithHistory(h HistoryRecorder) *GenerationService {
	s.history = h
	return s
}

// WithObserver adds an observer notified on every run.
func (s *GenerationService) WithObserver(o Observer) *GenerationService {
	if o != nil {
		s.observers = append(s.observers, o)
	}
	return s
}

// WithDebugOutput sends raw and normalized replies to w. A nil w disables it.
func (s *GenerationService) WithDebugOutput(w io.Writer) *GenerationService {
	s.debug = w
	return s
}

// Templates exposes the registry the service renders from.
func (s *GenerationService) Templates() *prompt.Registry {
	return s.templates
}

// ProviderID names the backend in use.
func (s *GenerationService) ProviderID() string {
	return s.provider.ID()
}

// Generate runs a request to completion.
func (s *GenerationService) Generate(ctx context.Context, req generation.Request) (*generation.Result, error) {
	return s.GenerateObserved(ctx, req, nil)
}

// GenerateObserved is Generate with an extra observer for this run only.
func (s *GenerationService) GenerateObserved(ctx context.Context, req generation.Request, obs Observer) (*generation.Result, error) {
	observers := s.observers
	if obs != nil {
		observers = append(append([]Observer(nil), s.observers...), obs)
	}

	res, err := s.generate(ctx, req, observers)
	for _, o := range observers {
		o.RunFinished(res, err)
	}
	return res, err
}

func (s *GenerationService) generate(ctx context.Context, req generation.Request, observers []Observer) (*generation.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tmpl, err := s.templates.Get(req.Template)
	if err != nil {
		return nil, err
	}

	// Rendering is deterministic, so a broken template fails here before
	// the provider is ever called.
	rendered, err := prompt.RenderQuestions(tmpl, req.Situation, req.Count)
	if err != nil {
		return nil, err
	}

	run, err := generation.NewRun(req.Count, s.maxAttempts)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := s.logger.With("run_id", runID, "template", tmpl.Name, "provider", s.provider.ID())
	log.Debug("generation started", "requested", req.Count, "temperature", req.Temperature)

	var records []questions.Record
	for !run.Done() {
		if err := ctx.Err(); err != nil {
			log.Warn("generation cancelled", "attempts", run.Attempts)
			return nil, err
		}
		if err := run.Begin(); err != nil {
			return nil, err
		}

		event := AttemptEvent{
			RunID:       runID,
			Attempt:     run.Attempts,
			MaxAttempts: run.MaxAttempts,
			Requested:   req.Count,
			State:       run.Current(),
		}
		for _, o := range observers {
			o.AttemptStarted(event)
		}

		records, err = s.attempt(ctx, rendered, req.Temperature)
		if err != nil {
			event.Err = err
			event.State = run.Current()
			for _, o := range observers {
				o.AttemptFinished(event)
			}
			log.Error("generation failed", "attempt", run.Attempts, "error", err)
			return nil, err
		}

		state, err := run.Record(len(records))
		if err != nil {
			return nil, err
		}

		event.Received = len(records)
		event.State = state
		for _, o := range observers {
			o.AttemptFinished(event)
		}
		if state == generation.StateRetrying {
			log.Info("record count mismatch, retrying",
				"attempt", run.Attempts, "requested", req.Count, "received", len(records))
		}
	}

	res := &generation.Result{
		RunID:        runID,
		Template:     tmpl.Name,
		Requested:    req.Count,
		Records:      records,
		AttemptsUsed: run.Attempts,
		Outcome:      generation.Outcome(run.Current()),
	}
	if res.Satisfied() {
		log.Info("generation satisfied", "attempts", res.AttemptsUsed)
	} else {
		log.Warn("generation exhausted", "attempts", res.AttemptsUsed, "requested", req.Count, "received", len(records))
	}

	if s.history != nil {
		if err := s.history.Append(req, res); err != nil {
			log.Warn("failed to record history", "error", err)
		}
	}
	return res, nil
}

func (s *GenerationService) attempt(ctx context.Context, rendered string, temperature float64) ([]questions.Record, error) {
	resp, err := s.provider.Complete(ctx, ai.CompletionRequest{
		Prompt:      rendered,
		Temperature: temperature,
	})
	if err != nil {
		if ai.IsProviderError(err) {
			return nil, err
		}
		return nil, ai.NewProviderError(s.provider.ID(), err)
	}

	if s.debug != nil {
		fmt.Fprintf(s.debug, "AI raw response: %s\n", resp.Text)
		fmt.Fprintf(s.debug, "AI normalized response: %s\n", questions.Normalize(resp.Text))
	}

	records, err := questions.Parse(resp.Text)
	if err != nil {
		var schemaErr *questions.SchemaError
		if s.debug != nil && errors.As(err, &schemaErr) {
			for _, issue := range schemaErr.Issues {
				fmt.Fprintf(s.debug, "AI JSON schema issue: %s\n", issue)
			}
		}
		return nil, err
	}
	return records, nil
}
