package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog/log"

	"github.com/pedro-r-marques/taskflow/pkg/engine"
)

const DefaultLocalName = "localhost"

// LocalHost runs commands on the machine running the scheduler through
// "sh -c".
type LocalHost struct {
	name  string
	shell string
}

func NewLocalHost(name string) *LocalHost {
	if name == "" {
		name = DefaultLocalName
	}
	return &LocalHost{name: name, shell: "sh"}
}

func (h *LocalHost) Name() string {
	return h.name
}

func (h *LocalHost) ExecuteCommand(ctx context.Context, command string) (engine.CommandResult, error) {
	cmd := exec.CommandContext(ctx, h.shell, "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug().Str("host", h.name).Str("command", command).Msg("exec")

	err := cmd.Run()
	result := engine.CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return result, fmt.Errorf("%s: %w", h.name, err)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	return result, nil
}
