package engine

//go:generate mockgen -source host.go -destination ./mock/host.go

import "context"

// CommandResult is the outcome of a single command on a host.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Host is an execution target. An error is returned only when the command
// could not be run at all (connection failure, spawn failure); a command that
// ran and exited with a non-zero status is reported through ExitCode.
type Host interface {
	Name() string
	ExecuteCommand(ctx context.Context, command string) (CommandResult, error)
}

// Notifier delivers a subject/message pair. Delivery is best-effort.
type Notifier interface {
	Name() string
	Notify(subject, message string) error
}
