package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/qualify/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/qualify/pkg/application"
	"github.com/felixgeelhaar/qualify/pkg/domain/generation"
	"github.com/felixgeelhaar/qualify/pkg/domain/prompt"
)

// TemplatesURI is the resource listing every available template.
const TemplatesURI = "qualify://templates"

type Server struct {
	mcpServer *mcp.Server
	gen       *application.GenerationService
	planner   *application.TaskPlannerService
	logger    *slog.Logger
}

var (
	Version     = "dev"
	BuildCommit = "unknown"
	BuildDate   = "unknown"
)

// mcpErr returns a user-friendly error for MCP clients.
// Internal details are omitted; only the friendly message is returned.
func mcpErr(friendly string) error {
	return fmt.Errorf("%s", friendly)
}

// NewServer wires the configured provider for root and registers all tools.
func NewServer(root string, logger *slog.Logger) (*Server, error) {
	services, err := wiring.BuildAppServices(root, logger)
	if err != nil {
		return nil, fmt.Errorf("build services: %w", err)
	}
	return NewServerWithServices(services), nil
}

// NewServerWithServices builds a server around already wired services.
func NewServerWithServices(services *wiring.AppServices) *Server {
	info := mcp.ServerInfo{
		Name:    "qualify",
		Version: Version,
	}

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcpServer: mcp.NewServer(info,
			mcp.WithTitle("Qualify MCP Server"),
			mcp.WithDescription("Qualify turns a free-text situation into qualifying questions with explanations."),
			mcp.WithWebsiteURL("https://github.com/felixgeelhaar/qualify"),
			mcp.WithBuildInfo(BuildCommit, BuildDate),
			mcp.WithInstructions("Call list_templates to pick a template, then generate_questions with a situation and count. Use plan_tasks to break an agent goal into tasks."),
		),
		gen:     services.Generation,
		planner: services.Planner,
		logger:  logger,
	}

	s.registerTools()
	s.registerTemplatesResource()
	return s
}

type GenerateArgs struct {
	Situation   string  `json:"situation" jsonschema:"description=The prospect's situation or pain point"`
	Count       int     `json:"count,omitempty" jsonschema:"description=How many questions to generate (1-20, default 5)"`
	Template    string  `json:"template,omitempty" jsonschema:"description=Template name (see list_templates). Defaults to healthcare"`
	Temperature float64 `json:"temperature,omitempty" jsonschema:"description=Sampling temperature between 0 and 2"`
}

type PlanArgs struct {
	Goal string `json:"goal" jsonschema:"description=The AI agent goal to break into tasks"`
}

// GenerateResult is the generate_questions payload. Warning is set when
// the run ended short of the requested count.
type GenerateResult struct {
	*generation.Result
	Warning string `json:"warning,omitempty"`
}

type TemplateInfo struct {
	Name         string   `json:"name"`
	Title        string   `json:"title,omitempty"`
	Description  string   `json:"description,omitempty"`
	Placeholders []string `json:"placeholders"`
}

func (s *Server) registerTools() {
	s.mcpServer.Tool("generate_questions").
		Description("Generate question/explanation pairs for a situation, retrying up to 3 times until the requested count is met").
		Handler(s.handleGenerate)

	s.mcpServer.Tool("list_templates").
		Description("List the prompt templates available for question generation").
		Handler(s.handleListTemplates)

	s.mcpServer.Tool("plan_tasks").
		Description("Break an AI agent goal into small, ordered, achievable tasks").
		Handler(s.handlePlan)
}

func (s *Server) registerTemplatesResource() {
	s.mcpServer.Resource(TemplatesURI).
		Name(TemplatesURI).
		Description("Prompt templates with their bodies and placeholders").
		MimeType("application/json").
		Handler(func(_ context.Context, _ string, _ map[string]string) (*mcp.ResourceContent, error) {
			type templateBody struct {
				TemplateInfo
				Body string `json:"body"`
			}
			list := s.gen.Templates().List()
			out := make([]templateBody, 0, len(list))
			for _, t := range list {
				out = append(out, templateBody{TemplateInfo: infoFor(t), Body: t.Body})
			}
			data, err := json.Marshal(out)
			if err != nil {
				return nil, err
			}
			return &mcp.ResourceContent{
				URI:      TemplatesURI,
				MimeType: "application/json",
				Text:     string(data),
			}, nil
		})
}

func (s *Server) handleGenerate(ctx context.Context, args GenerateArgs) (any, error) {
	req := generation.Request{
		Situation:   args.Situation,
		Count:       args.Count,
		Template:    args.Template,
		Temperature: args.Temperature,
	}
	if req.Count == 0 {
		req.Count = generation.DefaultCount
	}

	res, err := s.gen.Generate(ctx, req)
	if err != nil {
		kind := application.ClassifyError(err)
		s.logger.Warn("generate_questions failed", "kind", kind, "error", err)
		return nil, mcpErr(friendlyMessage(kind, err))
	}

	out := GenerateResult{Result: res}
	if !res.Satisfied() {
		out.Warning = fmt.Sprintf("Requested %d questions, but %d were generated after %d attempts.",
			res.Requested, len(res.Records), res.AttemptsUsed)
	}
	return out, nil
}

func (s *Server) handleListTemplates(_ context.Context, _ struct{}) (any, error) {
	list := s.gen.Templates().List()
	out := make([]TemplateInfo, 0, len(list))
	for _, t := range list {
		out = append(out, infoFor(t))
	}
	return out, nil
}

func (s *Server) handlePlan(ctx context.Context, args PlanArgs) (any, error) {
	plan, err := s.planner.Plan(ctx, args.Goal)
	if err != nil {
		if errors.Is(err, application.ErrEmptyGoal) {
			return nil, mcpErr("Please provide a goal.")
		}
		s.logger.Warn("plan_tasks failed", "error", err)
		return nil, mcpErr("Failed to plan tasks. Check the AI provider configuration.")
	}
	return plan, nil
}

// friendlyMessage keeps client errors verbatim since they describe the
// caller's own input.
func friendlyMessage(kind application.ErrorKind, err error) string {
	switch kind {
	case application.KindRequest, application.KindTemplate:
		return err.Error()
	case application.KindProvider:
		return "The AI provider request failed. Check credentials and connectivity."
	case application.KindMalformed, application.KindSchema:
		return "The AI provider returned an unreadable reply. Try again."
	case application.KindCancelled:
		return "Generation was cancelled."
	default:
		return "Failed to generate questions."
	}
}

func infoFor(t *prompt.Template) TemplateInfo {
	return TemplateInfo{
		Name:         t.Name,
		Title:        t.Title,
		Description:  t.Description,
		Placeholders: t.Placeholders(),
	}
}

func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	return mcp.ServeHTTP(ctx, s.mcpServer, addr, mcp.WithDefaultCORS())
}

func (s *Server) ServeWebSocket(ctx context.Context, addr string) error {
	return mcp.ServeWebSocket(ctx, s.mcpServer, addr)
}
