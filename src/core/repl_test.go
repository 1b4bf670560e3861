package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func runREPLScript(t *testing.T, engine *Engine, script string) string {
	t.Helper()

	var out bytes.Buffer
	repl := NewREPL(NewDispatcher(engine), engine, strings.NewReader(script), &out)
	repl.Run(context.Background())
	return out.String()
}

func TestREPL_ScriptedSession(t *testing.T) {
	engine := newTestEngine(t, newTestConfig(t))

	script := strings.Join([]string{
		"add_node node-A 4",
		"request_resource node-A CPU 2",
		"view_chain",
		"status",
		"exit",
	}, "\n")
	output := runREPLScript(t, engine, script)

	if !strings.Contains(output, "node-A registered") {
		t.Errorf("Expected registration confirmation in output:\n%s", output)
	}
	if !strings.Contains(output, "Exiting.") {
		t.Errorf("Expected exit message in output:\n%s", output)
	}
	if got := engine.Nodes()["node-A"].Allocated[ResourceCPU]; got != 2.0 {
		t.Errorf("Expected allocation 2.0 after scripted session, got %f", got)
	}
}

func TestREPL_ExitsOnEOF(t *testing.T) {
	engine := newTestEngine(t, newTestConfig(t))

	// No exit command; the loop must stop when input runs out
	output := runREPLScript(t, engine, "status\n")
	if !strings.Contains(output, "rationd>") {
		t.Errorf("Expected prompt in output:\n%s", output)
	}
}

func TestREPL_ReportsErrors(t *testing.T) {
	engine := newTestEngine(t, newTestConfig(t))

	output := runREPLScript(t, engine, "request_resource ghost CPU 1\nquit\n")
	if !strings.Contains(output, "unknown node") {
		t.Errorf("Expected error message in output:\n%s", output)
	}
}

func TestTruncateHash(t *testing.T) {
	if got := truncateHash("short"); got != "short" {
		t.Errorf("Expected short hashes unchanged, got %s", got)
	}

	long := strings.Repeat("a", 64)
	got := truncateHash(long)
	if len(got) != 19 || !strings.HasSuffix(got, "...") {
		t.Errorf("Expected truncated hash with ellipsis, got %s", got)
	}
}
