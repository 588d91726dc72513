package engine

import (
	"context"
	"fmt"
	"strings"
)

// TaskResult is the outcome of running one task on one host. Data is handed
// to the task's immediate successor.
type TaskResult struct {
	Success bool                   `json:"success"`
	Output  string                 `json:"output,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func failedResult(format string, args ...interface{}) *TaskResult {
	return &TaskResult{
		Error: fmt.Sprintf(format, args...),
		Data:  make(map[string]interface{}),
	}
}

// TaskFunc is the signature of a callable action. The args map holds the
// bound arguments plus, when the task declares a data dependency that was
// resolved, the predecessor's value under the dependency key.
type TaskFunc func(ctx context.Context, task *Task, host Host, args map[string]interface{}) (*TaskResult, error)

// Action is the work a task performs. The set of actions is closed:
// ShellAction and CallableAction.
type Action interface {
	run(ctx context.Context, task *Task, host Host, dep *dependency) *TaskResult
}

// dependency is a data value resolved from the predecessor's result.
type dependency struct {
	key   string
	value interface{}
}

// ShellAction runs a command on the host.
type ShellAction struct {
	Command string
	// Capture, when set, stores the trimmed stdout of a successful run under
	// this key of the result data.
	Capture string
}

func (a *ShellAction) run(ctx context.Context, task *Task, host Host, dep *dependency) *TaskResult {
	command := a.Command
	if dep != nil {
		s, ok := dep.value.(string)
		if !ok {
			return failedResult("task %s: data field %q is %T, expected string", task.Name, dep.key, dep.value)
		}
		command = s
	}
	if command == "" && task.DataKey != "" {
		return failedResult("task %s: %v: no command for field %q", task.Name, errUnresolvedData, task.DataKey)
	}

	out, err := host.ExecuteCommand(ctx, command)
	if err != nil {
		return failedResult("host %s: %v", host.Name(), err)
	}

	result := &TaskResult{
		Success: out.ExitCode == 0,
		Output:  out.Stdout,
		Data:    make(map[string]interface{}),
	}
	if !result.Success {
		result.Error = out.Stderr
		if result.Error == "" {
			result.Error = fmt.Sprintf("exit status %d", out.ExitCode)
		}
	} else if a.Capture != "" {
		result.Data[a.Capture] = strings.TrimSpace(out.Stdout)
	}
	return result
}

// CallableAction invokes a Go function with bound arguments.
type CallableAction struct {
	Func TaskFunc
	Args map[string]interface{}
}

func (a *CallableAction) run(ctx context.Context, task *Task, host Host, dep *dependency) *TaskResult {
	args := make(map[string]interface{}, len(a.Args)+1)
	for k, v := range a.Args {
		args[k] = v
	}
	if dep != nil {
		args[dep.key] = dep.value
	}

	result, err := a.Func(ctx, task, host, args)
	if err != nil {
		return failedResult("%v", err)
	}
	if result == nil {
		result = &TaskResult{Success: true}
	}
	if result.Data == nil {
		result.Data = make(map[string]interface{})
	}
	return result
}

// Task is a named unit of work with a success and a failure edge. Edges are
// set once; a task attached to a parent records the parent as predecessor.
type Task struct {
	Name        string
	Description string
	Action      Action
	// DataKey declares a dependency on a field of the predecessor's result.
	// When the field is present it replaces the command of a ShellAction, or
	// is passed in the args of a CallableAction. When absent the static action
	// is used.
	DataKey string

	onSuccess   *Task
	onFailure   *Task
	predecessor *Task
	buildErr    error
}

func NewShellTask(name, command string) *Task {
	return &Task{Name: name, Action: &ShellAction{Command: command}}
}

func NewCallableTask(name string, fn TaskFunc, args map[string]interface{}) *Task {
	return &Task{Name: name, Action: &CallableAction{Func: fn, Args: args}}
}

func (t *Task) WithDescription(description string) *Task {
	t.Description = description
	return t
}

// WithData declares a dependency on the predecessor's result field key.
func (t *Task) WithData(key string) *Task {
	t.DataKey = key
	return t
}

// WithCapture stores the stdout of a shell task under key. It has no effect
// on callable tasks.
func (t *Task) WithCapture(key string) *Task {
	if a, ok := t.Action.(*ShellAction); ok {
		a.Capture = key
	}
	return t
}

// OnSuccess sets the task that runs after t succeeds and returns t.
func (t *Task) OnSuccess(next *Task) *Task {
	if t.onSuccess != nil {
		t.setBuildErr(fmt.Errorf("task %s: success edge already set to %s", t.Name, t.onSuccess.Name))
		return t
	}
	if t.attach(next) {
		t.onSuccess = next
	}
	return t
}

// OnFailure sets the task that runs after t fails and returns t.
func (t *Task) OnFailure(next *Task) *Task {
	if t.onFailure != nil {
		t.setBuildErr(fmt.Errorf("task %s: failure edge already set to %s", t.Name, t.onFailure.Name))
		return t
	}
	if t.attach(next) {
		t.onFailure = next
	}
	return t
}

func (t *Task) attach(next *Task) bool {
	switch {
	case next == nil:
		t.setBuildErr(fmt.Errorf("task %s: nil successor", t.Name))
	case next == t:
		t.setBuildErr(fmt.Errorf("task %s: cannot follow itself", t.Name))
	case next.predecessor != nil:
		t.setBuildErr(fmt.Errorf("task %s: already attached to %s", next.Name, next.predecessor.Name))
	default:
		next.predecessor = t
		return true
	}
	return false
}

func (t *Task) setBuildErr(err error) {
	if t.buildErr == nil {
		t.buildErr = err
	}
}

// Next returns the successor followed on success (true) or failure (false).
func (t *Task) Next(success bool) *Task {
	if success {
		return t.onSuccess
	}
	return t.onFailure
}

func (t *Task) Predecessor() *Task {
	return t.predecessor
}

// resolve looks up the task's data dependency in the predecessor's result.
// A nil dependency with a nil error means the field is absent and the
// static action applies.
func (t *Task) resolve(pred *TaskResult) (*dependency, error) {
	if t.DataKey == "" {
		return nil, nil
	}
	if t.predecessor == nil || pred == nil {
		return nil, fmt.Errorf("task %s: %w: no predecessor result for %q", t.Name, errUnresolvedData, t.DataKey)
	}
	v, ok := pred.Data[t.DataKey]
	if !ok {
		return nil, nil
	}
	return &dependency{key: t.DataKey, value: v}, nil
}

func (t *Task) run(ctx context.Context, host Host, pred *TaskResult) *TaskResult {
	if t.Action == nil {
		return failedResult("task %s: no action", t.Name)
	}
	dep, err := t.resolve(pred)
	if err != nil {
		return failedResult("%v", err)
	}
	return t.Action.run(ctx, t, host, dep)
}
