package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const defaultClaudeBin = "claude"

// ClaudeCLI drives a local claude-code style CLI as a completion backend.
// Each call spawns one subprocess, passes the prompt on the command line and
// reads the completion from stdout.
type ClaudeCLI struct {
	bin string
}

// NewClaudeCLI returns a CLI-backed provider invoking bin. An empty bin uses
// the default "claude" from PATH.
func NewClaudeCLI(bin string) *ClaudeCLI {
	if bin == "" {
		bin = defaultClaudeBin
	}
	return &ClaudeCLI{bin: bin}
}

// Name returns the provider identifier.
func (p *ClaudeCLI) Name() string { return "claude-cli" }

// Complete invokes the CLI with the flattened prompt and captures its output.
// On timeout the child process is killed before the error is returned; the
// synchronous Run below cannot resolve twice, so the completion/timeout race
// collapses into the single ctx.Err check.
func (p *ClaudeCLI) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	timeout := requestTimeout(req)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-p", flattenMessages(req.Messages)}
	if sys := systemPrompt(req); sys != "" {
		args = append(args, "--system-prompt", sys)
	}

	cmd := exec.CommandContext(ctx, p.bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Give a killed child a moment to flush before Run returns.
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, timeoutError(p.Name(), timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("claude-cli: exit code %d: %s",
				exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("claude-cli: %w", err)
	}

	return &CompletionResponse{Content: strings.TrimSpace(stdout.String())}, nil
}

// flattenMessages builds the single prompt string the CLI accepts.
// User-role contents are concatenated; assistant-role messages are wrapped as
// quoted context so the tool does not replay them as its own instructions.
func flattenMessages(messages []Message) string {
	var parts []string
	for _, m := range messages {
		switch m.Role {
		case RoleAssistant:
			parts = append(parts, fmt.Sprintf("[Previous response]: %q", m.Content))
		case RoleSystem:
			// Handled via the system-prompt flag.
		default:
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

// systemPrompt merges the request-level system field with any system-role
// messages, request field first.
func systemPrompt(req CompletionRequest) string {
	parts := []string{}
	if req.System != "" {
		parts = append(parts, req.System)
	}
	for _, m := range req.Messages {
		if m.Role == RoleSystem && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
