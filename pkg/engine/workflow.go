package engine

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

type resultKey struct {
	task string
	host string
}

// Workflow is a named bundle of top-level tasks, hosts and notifiers.
// It is built once and then executed; the construction methods must not be
// called while an execution is in progress.
type Workflow struct {
	Name        string
	Description string
	// Workers bounds the number of hosts walked concurrently. Values below 2
	// walk hosts sequentially in registration order.
	Workers int

	tasks     []*Task
	hosts     []Host
	notifiers []Notifier

	mutex   sync.Mutex
	results map[resultKey]*TaskResult
	lastRun *Run
}

func NewWorkflow(name, description string) *Workflow {
	return &Workflow{
		Name:        name,
		Description: description,
		results:     make(map[resultKey]*TaskResult),
	}
}

func (w *Workflow) AddHost(host Host) *Workflow {
	w.hosts = append(w.hosts, host)
	return w
}

func (w *Workflow) AddTask(task *Task) *Workflow {
	w.tasks = append(w.tasks, task)
	return w
}

func (w *Workflow) AddNotifier(notifier Notifier) *Workflow {
	w.notifiers = append(w.notifiers, notifier)
	return w
}

func (w *Workflow) Tasks() []*Task {
	return w.tasks
}

func (w *Workflow) Hosts() []Host {
	return w.hosts
}

// Result returns the most recent result of the named task on the named host.
func (w *Workflow) Result(task, host string) (*TaskResult, bool) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	r, ok := w.results[resultKey{task, host}]
	return r, ok
}

// LastRun returns the trace of the most recently completed execution.
func (w *Workflow) LastRun() *Run {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.lastRun
}

func (w *Workflow) setResult(task, host string, result *TaskResult) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.results == nil {
		w.results = make(map[resultKey]*TaskResult)
	}
	w.results[resultKey{task, host}] = result
}

func (w *Workflow) setLastRun(run *Run) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.lastRun = run
}

// NotifyAll delivers the message to every notifier in registration order.
// A notifier that fails is logged and skipped.
func (w *Workflow) NotifyAll(subject, message string) {
	for _, n := range w.notifiers {
		notifyOne(n, subject, message)
	}
}

func notifyOne(n Notifier, subject, message string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("notifier", n.Name()).
				Interface("panic", r).
				Msg("notify")
		}
	}()
	if err := n.Notify(subject, message); err != nil {
		log.Warn().
			Err(err).
			Str("notifier", n.Name()).
			Str("subject", subject).
			Msg("notify")
	}
}

// Validate checks the workflow can be executed: it has tasks and hosts, and
// the tasks form a forest with every edge set at most once.
func (w *Workflow) Validate() error {
	if len(w.tasks) == 0 {
		return fmt.Errorf("%w: workflow %s has no tasks", ErrConfiguration, w.Name)
	}
	if len(w.hosts) == 0 {
		return fmt.Errorf("%w: workflow %s has no hosts", ErrConfiguration, w.Name)
	}

	seen := make(map[*Task]bool)
	for _, root := range w.tasks {
		if root == nil {
			return fmt.Errorf("%w: workflow %s: nil task", ErrConfiguration, w.Name)
		}
		for stack := []*Task{root}; len(stack) > 0; {
			t := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if seen[t] {
				return fmt.Errorf("%w: workflow %s: task %s is reachable more than once", ErrConfiguration, w.Name, t.Name)
			}
			seen[t] = true
			if t.buildErr != nil {
				return fmt.Errorf("%w: workflow %s: %v", ErrConfiguration, w.Name, t.buildErr)
			}
			if a, ok := t.Action.(*CallableAction); ok && a.Func == nil {
				return fmt.Errorf("%w: workflow %s: task %s has no function", ErrConfiguration, w.Name, t.Name)
			}
			if t.onFailure != nil {
				stack = append(stack, t.onFailure)
			}
			if t.onSuccess != nil {
				stack = append(stack, t.onSuccess)
			}
		}
	}
	return nil
}
