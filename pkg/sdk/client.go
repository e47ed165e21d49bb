package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/mcp-go/client"
	"github.com/felixgeelhaar/mcp-go/protocol"
)

// TemplatesURI is the resource listing the server's templates with bodies.
const TemplatesURI = "qualify://templates"

// Client is a typed Go client for the qualify MCP server.
type Client struct {
	mcp      *client.Client
	retryCfg retry.Config
	timeout  time.Duration
}

type options struct {
	timeout      time.Duration
	maxAttempts  int
	initialDelay time.Duration
}

// Option configures the SDK client.
type Option func(*options)

// WithTimeout sets the per-call timeout. A generation run may make several
// provider round trips, so the default is generous.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRetry configures how often a failed transport call is repeated.
func WithRetry(maxAttempts int, initialDelay time.Duration) Option {
	return func(o *options) {
		o.maxAttempts = maxAttempts
		o.initialDelay = initialDelay
	}
}

// NewClient creates a new SDK client wrapping the given MCP transport.
func NewClient(transport client.Transport, opts ...Option) *Client {
	o := options{
		timeout:      5 * time.Minute,
		maxAttempts:  2,
		initialDelay: 500 * time.Millisecond,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return &Client{
		mcp:     client.New(transport, client.WithTimeout(o.timeout)),
		timeout: o.timeout,
		retryCfg: retry.Config{
			MaxAttempts:   o.maxAttempts,
			InitialDelay:  o.initialDelay,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

// Initialize performs the MCP initialize handshake.
func (c *Client) Initialize(ctx context.Context) (*client.ServerInfo, error) {
	return c.mcp.Initialize(ctx)
}

// Close closes the underlying transport.
func (c *Client) Close() error {
	return c.mcp.Close()
}

// call invokes a tool, retrying only when the transport fails. A tool that
// fails answers with a JSON-RPC error or an error result; both are final.
func (c *Client) call(ctx context.Context, tool string, args map[string]any) (*client.ToolResult, error) {
	var toolErr *ToolError
	r := retry.New[*client.ToolResult](c.retryCfg)
	result, err := r.Do(ctx, func(ctx context.Context) (*client.ToolResult, error) {
		res, err := c.mcp.CallTool(ctx, tool, args)
		var rpcErr *protocol.Error
		if errors.As(err, &rpcErr) {
			toolErr = &ToolError{Tool: tool, Message: rpcErr.Message}
			return nil, nil
		}
		return res, err
	})
	if toolErr != nil {
		return nil, toolErr
	}
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", tool, err)
	}
	if result.IsError {
		msg := ""
		if len(result.Content) > 0 {
			msg = result.Content[0].Text
		}
		return nil, &ToolError{Tool: tool, Message: msg}
	}
	return result, nil
}

// unmarshalText extracts Content[0].Text from a tool result and unmarshals it as JSON.
func unmarshalText[T any](result *client.ToolResult) (*T, error) {
	text, err := textResult(result)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return &v, nil
}

func textResult(result *client.ToolResult) (string, error) {
	if len(result.Content) == 0 {
		return "", ErrNoContent
	}
	return result.Content[0].Text, nil
}

// GenerateQuestions runs generate_questions. An exhausted run is not an
// error; check Satisfied or Warning on the result.
func (c *Client) GenerateQuestions(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	args := map[string]any{"situation": req.Situation}
	if req.Count > 0 {
		args["count"] = req.Count
	}
	if req.Template != "" {
		args["template"] = req.Template
	}
	if req.Temperature > 0 {
		args["temperature"] = req.Temperature
	}
	res, err := c.call(ctx, "generate_questions", args)
	if err != nil {
		return nil, err
	}
	return unmarshalText[GenerateResult](res)
}

// ListTemplates runs list_templates.
func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	res, err := c.call(ctx, "list_templates", nil)
	if err != nil {
		return nil, err
	}
	list, err := unmarshalText[[]Template](res)
	if err != nil {
		return nil, err
	}
	return *list, nil
}

// TemplateBodies reads the templates resource, which also carries each
// template body.
func (c *Client) TemplateBodies(ctx context.Context) ([]Template, error) {
	rc, err := c.mcp.ReadResource(ctx, TemplatesURI)
	if err != nil {
		return nil, fmt.Errorf("read templates resource: %w", err)
	}
	var list []Template
	if err := json.Unmarshal([]byte(rc.Text), &list); err != nil {
		return nil, fmt.Errorf("unmarshal templates: %w", err)
	}
	return list, nil
}

// PlanTasks runs plan_tasks for goal.
func (c *Client) PlanTasks(ctx context.Context, goal string) (*TaskPlan, error) {
	res, err := c.call(ctx, "plan_tasks", map[string]any{"goal": goal})
	if err != nil {
		return nil, err
	}
	return unmarshalText[TaskPlan](res)
}
