package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"github.com/felixgeelhaar/qualify/pkg/application"
	"github.com/felixgeelhaar/qualify/pkg/domain/generation"
)

const (
	EventRunFinished = "run.finished"
	SignatureHeader  = "X-Qualify-Signature"
)

// Payload is the JSON body sent to json-format endpoints.
type Payload struct {
	Event        string    `json:"event"`
	RunID        string    `json:"run_id,omitempty"`
	Template     string    `json:"template,omitempty"`
	Outcome      string    `json:"outcome"`
	Requested    int       `json:"requested,omitempty"`
	Received     int       `json:"received"`
	AttemptsUsed int       `json:"attempts_used,omitempty"`
	Error        string    `json:"error,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Notifier posts a summary of every finished run to the configured
// endpoints. Deliveries run in the background; Wait blocks until they are
// done. Cancelled runs are not reported.
type Notifier struct {
	endpoints  []Endpoint
	client     *http.Client
	deadLetter *DeadLetterStore
	logger     *slog.Logger
	retryDelay time.Duration
	now        func() time.Time
	wg         sync.WaitGroup
}

func NewNotifier(endpoints []Endpoint, deadLetter *DeadLetterStore, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		endpoints:  endpoints,
		client:     &http.Client{Timeout: 10 * time.Second},
		deadLetter: deadLetter,
		logger:     logger,
		retryDelay: time.Second,
		now:        time.Now,
	}
}

// WithRetryDelay sets the first backoff delay between delivery attempts.
func (n *Notifier) WithRetryDelay(d time.Duration) *Notifier {
	n.retryDelay = d
	return n
}

func (n *Notifier) AttemptStarted(application.AttemptEvent)  {}
func (n *Notifier) AttemptFinished(application.AttemptEvent) {}

func (n *Notifier) RunFinished(res *generation.Result, err error) {
	kind := application.ClassifyError(err)
	if kind == application.KindCancelled {
		return
	}
	p := summarize(res, err, kind, n.now())

	for _, ep := range n.endpoints {
		if ep.Disabled || !ep.matches(p.Outcome) {
			continue
		}
		body, err := encode(ep, p)
		if err != nil {
			n.logger.Warn("webhook payload encoding failed", "endpoint", ep.Name, "error", err)
			continue
		}
		n.wg.Add(1)
		go func(ep Endpoint) {
			defer n.wg.Done()
			n.deliver(ep, p.RunID, body)
		}(ep)
	}
}

// Wait blocks until every pending delivery has finished or been dead
// lettered.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

func summarize(res *generation.Result, err error, kind application.ErrorKind, now time.Time) Payload {
	p := Payload{Event: EventRunFinished, Timestamp: now.UTC()}
	if err != nil {
		p.Outcome = OutcomeFailed
		p.Error = err.Error()
		p.ErrorKind = string(kind)
		return p
	}
	p.RunID = res.RunID
	p.Template = res.Template
	p.Outcome = string(res.Outcome)
	p.Requested = res.Requested
	p.Received = len(res.Records)
	p.AttemptsUsed = res.AttemptsUsed
	return p
}

func encode(ep Endpoint, p Payload) ([]byte, error) {
	if ep.Format != FormatSlack {
		return json.Marshal(p)
	}
	text := slackText(p)
	return json.Marshal(map[string]any{
		"text": text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]string{"type": "mrkdwn", "text": text},
			},
		},
	})
}

func slackText(p Payload) string {
	switch p.Outcome {
	case string(generation.OutcomeSatisfied):
		return fmt.Sprintf(":white_check_mark: Generated %d questions with template *%s* in %d attempt(s)",
			p.Received, p.Template, p.AttemptsUsed)
	case string(generation.OutcomeExhausted):
		return fmt.Sprintf(":warning: Requested %d questions, but %d were generated after %d attempts (template *%s*)",
			p.Requested, p.Received, p.AttemptsUsed, p.Template)
	default:
		return fmt.Sprintf(":x: Question generation failed (%s): %s", p.ErrorKind, p.Error)
	}
}

func (n *Notifier) deliver(ep Endpoint, runID string, body []byte) {
	ctx := context.Background()
	var (
		attempts int
		lastErr  error
	)
	r := retry.New[struct{}](retry.Config{
		MaxAttempts:   ep.retries(),
		InitialDelay:  n.retryDelay,
		BackoffPolicy: retry.BackoffExponential,
	})
	_, err := r.Do(ctx, func(ctx context.Context) (struct{}, error) {
		attempts++
		lastErr = n.send(ctx, ep, body)
		return struct{}{}, lastErr
	})
	if err == nil {
		n.logger.Debug("webhook delivered", "endpoint", ep.Name, "run_id", runID, "attempts", attempts)
		return
	}

	if lastErr != nil {
		err = lastErr
	}
	n.logger.Warn("webhook delivery failed", "endpoint", ep.Name, "run_id", runID, "attempts", attempts, "error", err)
	if n.deadLetter == nil {
		return
	}
	dl := DeadLetter{
		Timestamp: n.now().UTC(),
		Endpoint:  ep.Name,
		URL:       ep.URL,
		RunID:     runID,
		Payload:   string(body),
		Error:     err.Error(),
		Attempts:  attempts,
	}
	if err := n.deadLetter.Append(dl); err != nil {
		n.logger.Error("failed to record dead letter", "endpoint", ep.Name, "error", err)
	}
}

var errStatus = errors.New("webhook rejected delivery")

func (n *Notifier) send(ctx context.Context, ep Endpoint, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Qualify-Webhook/1.0")
	if ep.Secret != "" {
		req.Header.Set(SignatureHeader, sign(body, ep.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", errStatus, resp.StatusCode)
	}
	return nil
}

// sign computes the HMAC-SHA256 of body keyed by secret.
func sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
