package mcp_test

import (
	"testing"

	"github.com/felixgeelhaar/qualify/pkg/mcp"
)

func TestNewServer(t *testing.T) {
	t.Setenv("QUALIFY_AI_PROVIDER", "mock")

	s, err := mcp.NewServer(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if s == nil {
		t.Fatal("expected server instance")
	}
}

func TestNewServerUnknownProvider(t *testing.T) {
	t.Setenv("QUALIFY_AI_PROVIDER", "nope")

	if _, err := mcp.NewServer(t.TempDir(), nil); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
