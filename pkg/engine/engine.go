package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Execute runs the workflow once and reports whether every executed task
// succeeded.
func (w *Workflow) Execute(ctx context.Context) (bool, error) {
	run, err := w.Run(ctx)
	if err != nil {
		return false, err
	}
	return run.Success, nil
}

// Run executes every top-level task on every host and returns the trace.
// A failed task is not an error; only configuration problems are, and they
// are reported before any host is used.
func (w *Workflow) Run(ctx context.Context) (*Run, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	run := &Run{
		ID:       uuid.New(),
		Workflow: w.Name,
		Start:    time.Now(),
		Success:  true,
		Hosts:    make([]HostTrace, len(w.hosts)),
	}

	log.Debug().
		Str("id", run.ID.String()).
		Str("workflow", w.Name).
		Int("hosts", len(w.hosts)).
		Msg("workflow start")

	hostOK := make([]bool, len(w.hosts))
	if w.Workers > 1 && len(w.hosts) > 1 {
		w.runParallel(ctx, run, hostOK)
	} else {
		for i := range w.hosts {
			run.Hosts[i], hostOK[i] = w.runHost(ctx, w.hosts[i])
		}
	}
	for _, ok := range hostOK {
		if !ok {
			run.Success = false
		}
	}
	run.End = time.Now()
	w.setLastRun(run)

	log.Debug().
		Str("id", run.ID.String()).
		Str("workflow", w.Name).
		Bool("success", run.Success).
		Dur("elapsed", run.End.Sub(run.Start)).
		Msg("workflow done")

	return run, nil
}

// runParallel walks hosts on a bounded pool of w.Workers goroutines. Each
// host writes only its own slot of the trace.
func (w *Workflow) runParallel(ctx context.Context, run *Run, hostOK []bool) {
	workers := w.Workers
	if workers > len(w.hosts) {
		workers = len(w.hosts)
	}
	workCh := make(chan int)
	var wg sync.WaitGroup
	var once sync.Once
	var panicValue interface{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() { panicValue = r })
					// keep draining so the producer does not block
					for range workCh {
					}
				}
			}()
			for ix := range workCh {
				run.Hosts[ix], hostOK[ix] = w.runHost(ctx, w.hosts[ix])
			}
		}()
	}
	for ix := range w.hosts {
		workCh <- ix
	}
	close(workCh)
	wg.Wait()

	// a panic in a task is re-raised on the caller's goroutine
	if panicValue != nil {
		panic(panicValue)
	}
}

func (w *Workflow) runHost(ctx context.Context, host Host) (HostTrace, bool) {
	trace := HostTrace{
		Host:  host.Name(),
		Roots: make([]*TaskNode, 0, len(w.tasks)),
	}
	ok := true
	for _, task := range w.tasks {
		root, treeOK := w.walk(ctx, task, host)
		trace.Roots = append(trace.Roots, root)
		if !treeOK {
			ok = false
		}
	}
	return trace, ok
}

// walk runs the chain rooted at task on host. The stack holds nodes that
// still have to run; the edge that is not followed gets a NotRun placeholder.
func (w *Workflow) walk(ctx context.Context, task *Task, host Host) (*TaskNode, bool) {
	root := newTaskNode(task, host.Name(), nil)
	ok := true

	for stack := []*TaskNode{root}; len(stack) > 0; {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var pred *TaskResult
		if node.parent != nil {
			pred = node.parent.Result
		}

		node.Start = time.Now()
		result := node.Task.run(ctx, host, pred)
		node.End = time.Now()
		node.Result = result
		if result.Success {
			node.Status = Succeeded
		} else {
			node.Status = Failed
			ok = false
		}

		w.setResult(node.Task.Name, node.Host, result)
		w.NotifyAll(resultMessage(node))

		log.Debug().
			Str("workflow", w.Name).
			Str("task", node.Task.Name).
			Str("host", node.Host).
			Str("status", node.Status.String()).
			Msg("task done")

		taken, skipped := node.Task.onSuccess, node.Task.onFailure
		if !result.Success {
			taken, skipped = skipped, taken
		}
		if skipped != nil {
			placeholder := newTaskNode(skipped, node.Host, node)
			node.setChild(!result.Success, placeholder)
		}
		if taken != nil {
			child := newTaskNode(taken, node.Host, node)
			node.setChild(result.Success, child)
			stack = append(stack, child)
		}
	}
	return root, ok
}

func (n *TaskNode) setChild(success bool, child *TaskNode) {
	if success {
		n.OnSuccess = child
	} else {
		n.OnFailure = child
	}
}

func resultMessage(node *TaskNode) (string, string) {
	subject := fmt.Sprintf("task %s on %s %s", node.Task.Name, node.Host, node.Status)

	var b strings.Builder
	fmt.Fprintf(&b, "task: %s\n", node.Task.Name)
	fmt.Fprintf(&b, "host: %s\n", node.Host)
	fmt.Fprintf(&b, "status: %s\n", node.Status)
	fmt.Fprintf(&b, "output:\n%s\n", node.Result.Output)
	if node.Result.Error != "" {
		fmt.Fprintf(&b, "error:\n%s\n", node.Result.Error)
	}
	return subject, b.String()
}
