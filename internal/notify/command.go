package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Command runs a shell command template such as
// "notify-send 'Kriya' '{{.Subject}}'". Placeholders are {{.Subject}} and
// {{.Body}}.
type Command struct {
	template string
	run      func(ctx context.Context, command string) ([]byte, error)
}

// NewCommand returns a Command notifier.
func NewCommand(template string) *Command {
	return &Command{template: template, run: runShell}
}

func runShell(ctx context.Context, command string) ([]byte, error) {
	return exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
}

func (c *Command) Notify(ctx context.Context, subject, body string) error {
	cmd := expand(c.template, subject, body)
	if out, err := c.run(ctx, cmd); err != nil {
		return fmt.Errorf("notify: command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// expand replaces placeholders in the command template.
func expand(template, subject, body string) string {
	r := strings.NewReplacer(
		"{{.Subject}}", subject,
		"{{.Body}}", body,
	)
	return r.Replace(template)
}
