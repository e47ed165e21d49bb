package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/qualify/internal/infrastructure/config"
	"github.com/felixgeelhaar/qualify/pkg/domain/generation"
	"github.com/felixgeelhaar/qualify/pkg/domain/questions"
)

func TestGenerateCommandText(t *testing.T) {
	useMockProvider(t)
	dir := t.TempDir()

	out, _, err := runCLI(t, dir, "generate", "--count", "3", "Client is struggling with patient data")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for _, want := range []string{
		"Generated 3 questions for: Client is struggling with patient data",
		"Question 1:",
		"Question 3:",
		"Explanation:",
		separator,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Question 4:") {
		t.Errorf("unexpected fourth question:\n%s", out)
	}
}

func TestGenerateCommandJSON(t *testing.T) {
	useMockProvider(t)
	dir := t.TempDir()

	out, _, err := runCLI(t, dir, "generate", "-n", "2", "--template", "support", "--format", "json", "cannot log in")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var res generation.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if res.Template != "support" || len(res.Records) != 2 || res.Outcome != generation.OutcomeSatisfied {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestGenerateCommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		wantMsg string
	}{
		{
			name:    "count out of range",
			args:    []string{"generate", "--count", "0", "x"},
			wantMsg: "invalid request",
		},
		{
			name:    "unknown template",
			args:    []string{"generate", "--template", "nope", "x"},
			wantMsg: "template cannot be used",
		},
		{
			name:    "unknown format",
			args:    []string{"generate", "--format", "xml", "x"},
			wantMsg: `unknown format "xml"`,
		},
		{
			name:    "missing credential",
			args:    []string{"generate", "x"},
			env:     map[string]string{config.EnvProvider: "anthropic", "ANTHROPIC_API_KEY": ""},
			wantMsg: "AI provider is not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useMockProvider(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, _, err := runCLI(t, t.TempDir(), tt.args...)
			var cliErr *CLIError
			if !errors.As(err, &cliErr) {
				t.Fatalf("expected CLIError, got %v", err)
			}
			if cliErr.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", cliErr.Message, tt.wantMsg)
			}
			if cliErr.Hint == "" {
				t.Error("expected a hint")
			}
		})
	}
}

func TestPrintResult(t *testing.T) {
	recs := []questions.Record{{Question: "q1", Explanation: "e1"}}

	t.Run("exhausted prints warning and records", func(t *testing.T) {
		var buf bytes.Buffer
		printResult(&buf, "x", &generation.Result{
			Requested: 2, Records: recs, AttemptsUsed: 3, Outcome: generation.OutcomeExhausted,
		})
		out := buf.String()
		if !strings.Contains(out, "Requested 2 questions, but 1 were generated after 3 attempts") {
			t.Errorf("missing warning:\n%s", out)
		}
		if !strings.Contains(out, "q1") || !strings.Contains(out, "e1") {
			t.Errorf("missing record:\n%s", out)
		}
	})

	t.Run("no records", func(t *testing.T) {
		var buf bytes.Buffer
		printResult(&buf, "x", &generation.Result{Requested: 2, AttemptsUsed: 3, Outcome: generation.OutcomeExhausted})
		if !strings.Contains(buf.String(), "No questions were generated") {
			t.Errorf("unexpected output:\n%s", buf.String())
		}
	})
}

func TestTemplatesCommands(t *testing.T) {
	useMockProvider(t)
	dir := t.TempDir()

	out, _, err := runCLI(t, dir, "templates", "list")
	if err != nil {
		t.Fatalf("templates list: %v", err)
	}
	for _, want := range []string{"healthcare (default)", "support", "input, num"} {
		if !strings.Contains(out, want) {
			t.Errorf("list missing %q:\n%s", want, out)
		}
	}

	out, _, err = runCLI(t, dir, "templates", "show", "support")
	if err != nil {
		t.Fatalf("templates show: %v", err)
	}
	if !strings.Contains(out, "Customer Support Diagnostics") || !strings.Contains(out, "{num}") {
		t.Errorf("unexpected show output:\n%s", out)
	}

	if _, _, err := runCLI(t, dir, "templates", "show", "nope"); err == nil {
		t.Error("expected error for unknown template")
	}
}

func TestInitCommand(t *testing.T) {
	useMockProvider(t)
	dir := t.TempDir()

	out, _, err := runCLI(t, dir, "init")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "Initialized workspace") {
		t.Errorf("unexpected output: %s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, ".qualify", "config.yaml")); err != nil {
		t.Errorf("config not written: %v", err)
	}

	out, _, err = runCLI(t, dir, "templates", "list")
	if err != nil {
		t.Fatalf("templates list: %v", err)
	}
	if !strings.Contains(out, "discovery") {
		t.Errorf("example template not listed:\n%s", out)
	}

	if _, _, err := runCLI(t, dir, "generate", "-t", "discovery", "-n", "2", "We need a CRM"); err != nil {
		t.Errorf("generate with example template: %v", err)
	}

	if _, _, err := runCLI(t, dir, "init"); err == nil {
		t.Error("expected error on second init")
	}
}

func TestPlanCommand(t *testing.T) {
	useMockProvider(t)
	dir := t.TempDir()

	out, _, err := runCLI(t, dir, "plan", "triage", "support", "tickets")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !strings.Contains(out, "Task plan for: triage support tickets") {
		t.Errorf("unexpected output:\n%s", out)
	}

	_, _, err = runCLI(t, dir, "plan", "   ")
	var cliErr *CLIError
	if !errors.As(err, &cliErr) || cliErr.Message != "no goal given" {
		t.Errorf("expected empty goal error, got %v", err)
	}
}

func TestConfigCommands(t *testing.T) {
	useMockProvider(t)
	dir := t.TempDir()

	if _, _, err := runCLI(t, dir, "config", "set", "--provider", "ollama", "--model", "llama3", "--temperature", "0.7"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	cfg, err := config.Read(dir)
	if err != nil || cfg == nil {
		t.Fatalf("read config: %v", err)
	}
	if cfg.Provider != "ollama" || cfg.Model != "llama3" || cfg.Temperature != 0.7 {
		t.Errorf("unexpected config: %+v", cfg)
	}

	// Only changed flags are written.
	if _, _, err := runCLI(t, dir, "config", "set", "--history=true"); err != nil {
		t.Fatalf("config set history: %v", err)
	}
	cfg, _ = config.Read(dir)
	if cfg.Provider != "ollama" || !cfg.History {
		t.Errorf("unexpected config after second set: %+v", cfg)
	}

	out, _, err := runCLI(t, dir, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	// The environment override wins over the file.
	if !strings.Contains(out, "provider: mock") {
		t.Errorf("unexpected show output:\n%s", out)
	}

	if _, _, err := runCLI(t, dir, "config", "set", "--provider", "bogus"); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, _, err := runCLI(t, dir, "config", "set", "--temperature", "3"); err == nil {
		t.Error("expected error for temperature out of range")
	}
}

func TestHistoryCommand(t *testing.T) {
	useMockProvider(t)
	dir := t.TempDir()

	out, _, err := runCLI(t, dir, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "No runs recorded.") {
		t.Errorf("unexpected output: %s", out)
	}

	if _, _, err := runCLI(t, dir, "config", "set", "--provider", "mock", "--history=true"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	if _, _, err := runCLI(t, dir, "generate", "-n", "2", "first situation"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, _, err := runCLI(t, dir, "generate", "-n", "1", "second situation"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	out, _, err = runCLI(t, dir, "history", "--limit", "1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "second situation") || strings.Contains(out, "first situation") {
		t.Errorf("expected only the newest run:\n%s", out)
	}

	out, _, err = runCLI(t, dir, "history", "--json")
	if err != nil {
		t.Fatalf("history json: %v", err)
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 || entries[0]["situation"] != "second situation" {
		t.Errorf("unexpected entries: %v", entries)
	}
}

func TestServerCommandsSkipStart(t *testing.T) {
	useMockProvider(t)
	t.Setenv("QUALIFY_SKIP_SERVE", "true")
	t.Setenv("QUALIFY_SKIP_MCP_START", "true")
	t.Setenv("QUALIFY_SKIP_FORM_RUN", "true")
	dir := t.TempDir()

	for _, args := range [][]string{{"serve"}, {"mcp", "--transport", "http"}, {"form"}} {
		if _, _, err := runCLI(t, dir, args...); err != nil {
			t.Errorf("%v: %v", args, err)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("abcdefghij", 8); got != "abcde..." {
		t.Errorf("got %q", got)
	}
}
