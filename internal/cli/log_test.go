package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	slogcontext "github.com/veqryn/slog-context"
)

func newLogProbe(t *testing.T, args ...string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	var stderr bytes.Buffer
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(&stderr)
	root.SetArgs(args)
	return root, &stderr
}

func TestLogging_InvalidFormat(t *testing.T) {
	t.Parallel()
	root, _ := newLogProbe(t, "--logformat", "xml", "init", "--out", t.TempDir()+"/c.yaml")

	err := root.Execute()
	if err == nil {
		t.Fatalf("expected error for invalid log format")
	}
	if !strings.Contains(err.Error(), "invalid log format: xml") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLogging_InvalidLevel(t *testing.T) {
	t.Parallel()
	root, _ := newLogProbe(t, "--loglevel", "loud", "init", "--out", t.TempDir()+"/c.yaml")

	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid log level: loud") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLogging_ContextLoggerHonoursFlags(t *testing.T) {
	root, stderr := newLogProbe(t, "--logformat", "json", "--loglevel", "info", "generate", "--input", "spec.yaml")

	generateRunner = func(ctx context.Context, cfg *GenerateConfig) error {
		log := slogcontext.FromCtx(ctx)
		log.Debug("hidden")
		log.Info("probe", "input", cfg.Input)
		return nil
	}
	t.Cleanup(func() { generateRunner = runGenerate })

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	out := stderr.String()
	if !strings.Contains(out, `"msg":"probe"`) || !strings.Contains(out, `"input":"spec.yaml"`) {
		t.Fatalf("expected json log line, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line leaked at info level: %q", out)
	}
}

func TestLoggerLevel_VerboseMeansDebug(t *testing.T) {
	root := NewRootCmd()
	if err := root.ParseFlags([]string{"--verbose"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	level, err := loggerLevel(root)
	if err != nil {
		t.Fatalf("loggerLevel: %v", err)
	}
	if level != slog.LevelDebug {
		t.Fatalf("level = %v, want debug", level)
	}

	root = NewRootCmd()
	if err := root.ParseFlags([]string{"--verbose", "--loglevel", "error"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if level, _ := loggerLevel(root); level != slog.LevelError {
		t.Fatalf("explicit --loglevel should win over --verbose, got %v", level)
	}
}
