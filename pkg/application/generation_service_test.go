package application_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/felixgeelhaar/qualify/pkg/application"
	"github.com/felixgeelhaar/qualify/pkg/domain/ai"
	"github.com/felixgeelhaar/qualify/pkg/domain/generation"
	"github.com/felixgeelhaar/qualify/pkg/domain/prompt"
	"github.com/felixgeelhaar/qualify/pkg/domain/questions"
)

// scriptedProvider answers each call with the next scripted reply.
type scriptedProvider struct {
	mu      sync.Mutex
	replies []scriptedReply
	prompts []string
	temps   []float64
}

type scriptedReply struct {
	text string
	err  error
}

func (p *scriptedProvider) ID() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prompts = append(p.prompts, req.Prompt)
	p.temps = append(p.temps, req.Temperature)
	if len(p.replies) == 0 {
		return nil, ai.NewProviderError(p.ID(), errors.New("script exhausted"))
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	return &ai.CompletionResponse{Text: r.text}, nil
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.prompts)
}

func recordsJSON(n int) string {
	items := make([]map[string]string, n)
	for i := range items {
		items[i] = map[string]string{
			"question":    fmt.Sprintf("Q%d", i+1),
			"explanation": fmt.Sprintf("E%d", i+1),
		}
	}
	data, _ := json.Marshal(items)
	return string(data)
}

func script(texts ...string) *scriptedProvider {
	p := &scriptedProvider{}
	for _, t := range texts {
		p.replies = append(p.replies, scriptedReply{text: t})
	}
	return p
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []application.AttemptEvent
	finished []application.AttemptEvent
	runs     int
	lastErr  error
}

func (o *recordingObserver) AttemptStarted(e application.AttemptEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, e)
}

func (o *recordingObserver) AttemptFinished(e application.AttemptEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, e)
}

func (o *recordingObserver) RunFinished(_ *generation.Result, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs++
	o.lastErr = err
}

type memoryHistory struct {
	entries []*generation.Result
	err     error
}

func (h *memoryHistory) Append(_ generation.Request, res *generation.Result) error {
	h.entries = append(h.entries, res)
	return h.err
}

func request(situation string, count int) generation.Request {
	return generation.Request{Situation: situation, Count: count}
}

func TestGenerate_SatisfiedOnFirstAttempt(t *testing.T) {
	provider := script(recordsJSON(5))
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil)

	res, err := svc.Generate(context.Background(), request("Clinic struggling with patient retention", 5))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Outcome != generation.OutcomeSatisfied || res.AttemptsUsed != 1 {
		t.Errorf("got outcome=%s attempts=%d, want satisfied after 1", res.Outcome, res.AttemptsUsed)
	}
	if len(res.Records) != 5 {
		t.Errorf("expected 5 records, got %d", len(res.Records))
	}
	if res.Records[0].Question != "Q1" || res.Records[4].Explanation != "E5" {
		t.Errorf("records out of order: %+v", res.Records)
	}
	if provider.calls() != 1 {
		t.Errorf("expected 1 provider call, got %d", provider.calls())
	}
	if res.RunID == "" || res.Template != prompt.HealthcareQualifying {
		t.Errorf("unexpected run metadata: %+v", res)
	}

	sent := provider.prompts[0]
	if !strings.Contains(sent, "Clinic struggling with patient retention") || !strings.Contains(sent, "exactly 5") {
		t.Errorf("prompt not rendered with input and count: %q", sent)
	}
}

func TestGenerate_RetriesUntilCountMatches(t *testing.T) {
	provider := script(recordsJSON(8), recordsJSON(8), recordsJSON(10))
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil)

	res, err := svc.Generate(context.Background(), request("Hospital evaluating scheduling software", 10))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Outcome != generation.OutcomeSatisfied || res.AttemptsUsed != 3 {
		t.Errorf("got outcome=%s attempts=%d, want satisfied after 3", res.Outcome, res.AttemptsUsed)
	}
	if len(res.Records) != 10 {
		t.Errorf("expected 10 records, got %d", len(res.Records))
	}
	for i, p := range provider.prompts {
		if p != provider.prompts[0] {
			t.Errorf("attempt %d sent a different prompt", i+1)
		}
	}
}

func TestGenerate_ExhaustedReturnsLastAttempt(t *testing.T) {
	provider := script(recordsJSON(6), recordsJSON(6), recordsJSON(7))
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil)

	res, err := svc.Generate(context.Background(), request("Printer keeps jamming", 5))
	if err != nil {
		t.Fatalf("exhaustion must not be an error: %v", err)
	}
	if res.Outcome != generation.OutcomeExhausted || res.AttemptsUsed != 3 {
		t.Errorf("got outcome=%s attempts=%d, want exhausted after 3", res.Outcome, res.AttemptsUsed)
	}
	if len(res.Records) != 7 {
		t.Errorf("expected the last attempt's 7 records, got %d", len(res.Records))
	}
	if res.Shortfall() != -2 {
		t.Errorf("Shortfall = %d", res.Shortfall())
	}
}

func TestGenerate_NeverMoreThanThreeCalls(t *testing.T) {
	provider := script(recordsJSON(1), recordsJSON(1), recordsJSON(1), recordsJSON(2), recordsJSON(2))
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil)

	if _, err := svc.Generate(context.Background(), request("x", 2)); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if provider.calls() != generation.MaxAttempts {
		t.Errorf("expected %d calls, got %d", generation.MaxAttempts, provider.calls())
	}
}

func TestGenerate_RepairsTrailingComma(t *testing.T) {
	provider := script(`[{"question":"Q1","explanation":"E1"},{"question":"Q2","explanation":"E2"},]`)
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil)

	res, err := svc.Generate(context.Background(), request("x", 2))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.Satisfied() || len(res.Records) != 2 {
		t.Errorf("expected 2 repaired records, got %+v", res)
	}
}

func TestGenerate_MalformedReplyIsNotRetried(t *testing.T) {
	provider := script("Sure! Here are your questions:", recordsJSON(3))
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil)

	_, err := svc.Generate(context.Background(), request("x", 3))
	var malformed *questions.MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
	if provider.calls() != 1 {
		t.Errorf("malformed reply must not be retried, got %d calls", provider.calls())
	}
}

func TestGenerate_SchemaErrorIsNotRetried(t *testing.T) {
	provider := script(`[{"question":"Q1"}]`, recordsJSON(1))
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil)

	_, err := svc.Generate(context.Background(), request("x", 1))
	var schemaErr *questions.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if provider.calls() != 1 {
		t.Errorf("schema error must not be retried, got %d calls", provider.calls())
	}
}

func TestGenerate_ProviderErrorAbortsMidRun(t *testing.T) {
	provider := &scriptedProvider{replies: []scriptedReply{
		{text: recordsJSON(2)},
		{err: ai.NewProviderError("scripted", errors.New("API returned status 401 Unauthorized: Incorrect API key provided"))},
		{text: recordsJSON(4)},
	}}
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil)

	_, err := svc.Generate(context.Background(), request("x", 4))
	if !ai.IsProviderError(err) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if !strings.Contains(err.Error(), "Incorrect API key provided") {
		t.Errorf("provider message lost: %v", err)
	}
	if provider.calls() != 2 {
		t.Errorf("expected 2 calls before abort, got %d", provider.calls())
	}
}

func TestGenerate_PlainErrorsBecomeProviderErrors(t *testing.T) {
	provider := &scriptedProvider{replies: []scriptedReply{{err: errors.New("connection refused")}}}
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil)

	_, err := svc.Generate(context.Background(), request("x", 1))
	if !ai.IsProviderError(err) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

func TestGenerate_TemplateErrorMakesNoCalls(t *testing.T) {
	registry := prompt.NewRegistry()
	broken := prompt.MustNew("broken", "Ask {num} questions about {input} for {audience}")
	if err := registry.Replace([]*prompt.Template{broken}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	provider := script(recordsJSON(1))
	svc := application.NewGenerationService(provider, registry, nil)

	req := request("x", 1)
	req.Template = "broken"
	_, err := svc.Generate(context.Background(), req)

	var tmplErr *prompt.TemplateError
	if !errors.As(err, &tmplErr) {
		t.Fatalf("expected TemplateError, got %v", err)
	}
	if tmplErr.Placeholder != "audience" {
		t.Errorf("Placeholder = %q, want audience", tmplErr.Placeholder)
	}
	if provider.calls() != 0 {
		t.Errorf("expected no provider calls, got %d", provider.calls())
	}
}

func TestGenerate_UnknownTemplate(t *testing.T) {
	provider := script(recordsJSON(1))
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil)

	req := request("x", 1)
	req.Template = "nope"
	_, err := svc.Generate(context.Background(), req)

	var tmplErr *prompt.TemplateError
	if !errors.As(err, &tmplErr) {
		t.Fatalf("expected TemplateError, got %v", err)
	}
	if provider.calls() != 0 {
		t.Errorf("expected no provider calls, got %d", provider.calls())
	}
}

func TestGenerate_InvalidRequest(t *testing.T) {
	provider := script(recordsJSON(1))
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil)

	cases := []generation.Request{
		{Situation: "", Count: 1},
		{Situation: "x", Count: 0},
		{Situation: "x", Count: 21},
		{Situation: "x", Count: 1, Temperature: 2.5},
	}
	for _, req := range cases {
		_, err := svc.Generate(context.Background(), req)
		var reqErr *generation.RequestError
		if !errors.As(err, &reqErr) {
			t.Errorf("request %+v: expected RequestError, got %v", req, err)
		}
	}
	if provider.calls() != 0 {
		t.Errorf("expected no provider calls, got %d", provider.calls())
	}
}

func TestGenerate_PassesTemperature(t *testing.T) {
	provider := script(recordsJSON(1))
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil)

	req := request("x", 1)
	req.Temperature = 0.7
	if _, err := svc.Generate(context.Background(), req); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if provider.temps[0] != 0.7 {
		t.Errorf("temperature = %v", provider.temps[0])
	}
}

func TestGenerate_CancelledContext(t *testing.T) {
	provider := script(recordsJSON(1))
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Generate(ctx, request("x", 1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if provider.calls() != 0 {
		t.Errorf("expected no provider calls, got %d", provider.calls())
	}
}

func TestGenerate_ObserversSeeEveryAttempt(t *testing.T) {
	provider := script(recordsJSON(1), recordsJSON(2))
	global := &recordingObserver{}
	perRun := &recordingObserver{}
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil).WithObserver(global)

	if _, err := svc.GenerateObserved(context.Background(), request("x", 2), perRun); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	for name, o := range map[string]*recordingObserver{"global": global, "per-run": perRun} {
		if len(o.started) != 2 || len(o.finished) != 2 || o.runs != 1 {
			t.Fatalf("%s: started=%d finished=%d runs=%d", name, len(o.started), len(o.finished), o.runs)
		}
		if o.finished[0].State != generation.StateRetrying || o.finished[0].Received != 1 {
			t.Errorf("%s: first attempt = %+v", name, o.finished[0])
		}
		if o.finished[1].State != generation.StateSatisfied || o.finished[1].Attempt != 2 {
			t.Errorf("%s: second attempt = %+v", name, o.finished[1])
		}
	}
}

func TestGenerate_ObserverSeesFailure(t *testing.T) {
	provider := script("not json")
	o := &recordingObserver{}
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil)

	_, err := svc.GenerateObserved(context.Background(), request("x", 1), o)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(o.finished) != 1 || o.finished[0].Err == nil {
		t.Errorf("failed attempt not reported: %+v", o.finished)
	}
	if o.lastErr != err {
		t.Errorf("RunFinished got %v, want %v", o.lastErr, err)
	}
}

func TestGenerate_RecordsHistory(t *testing.T) {
	provider := script(recordsJSON(1), "broken")
	history := &memoryHistory{err: errors.New("disk full")}
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil).WithHistory(history)

	if _, err := svc.Generate(context.Background(), request("x", 1)); err != nil {
		t.Fatalf("history failures must not fail the run: %v", err)
	}
	if _, err := svc.Generate(context.Background(), request("x", 1)); err == nil {
		t.Fatal("expected malformed reply error")
	}
	if len(history.entries) != 1 {
		t.Errorf("expected only the completed run in history, got %d", len(history.entries))
	}
}

func TestGenerate_DebugOutput(t *testing.T) {
	provider := script("[{\"question\":\"Q\",\"explanation\":\"E\"},]")
	var buf bytes.Buffer
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil).WithDebugOutput(&buf)

	if _, err := svc.Generate(context.Background(), request("x", 1)); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "AI raw response:") || !strings.Contains(out, "AI normalized response:") {
		t.Errorf("debug output missing: %q", out)
	}
}

func TestGenerate_ConcurrentRuns(t *testing.T) {
	provider := &scriptedProvider{}
	for i := 0; i < 8; i++ {
		provider.replies = append(provider.replies, scriptedReply{text: recordsJSON(3)})
	}
	svc := application.NewGenerationService(provider, prompt.NewRegistry(), nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Generate(context.Background(), request("x", 3))
			if err == nil && !res.Satisfied() {
				err = fmt.Errorf("run not satisfied: %+v", res)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}
