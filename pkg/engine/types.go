package engine

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Status int

const (
	NotRun = Status(iota)
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "not run"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TaskNode records what happened to one task on one host during a single
// execution. The branch that was not taken holds a NotRun placeholder with
// no children.
type TaskNode struct {
	Task      *Task
	Host      string
	Result    *TaskResult
	Status    Status
	Start     time.Time
	End       time.Time
	OnSuccess *TaskNode
	OnFailure *TaskNode

	parent *TaskNode
}

func newTaskNode(task *Task, host string, parent *TaskNode) *TaskNode {
	return &TaskNode{Task: task, Host: host, parent: parent}
}

type taskNodeJSON struct {
	Name      string        `json:"name"`
	Host      string        `json:"host"`
	Status    Status        `json:"status"`
	Start     time.Time     `json:"startTime,omitempty"`
	Elapsed   time.Duration `json:"elapsed,omitempty"`
	Result    *TaskResult   `json:"result,omitempty"`
	OnSuccess *TaskNode     `json:"onSuccess,omitempty"`
	OnFailure *TaskNode     `json:"onFailure,omitempty"`
}

func (n *TaskNode) MarshalJSON() ([]byte, error) {
	v := taskNodeJSON{
		Name:      n.Task.Name,
		Host:      n.Host,
		Status:    n.Status,
		Result:    n.Result,
		OnSuccess: n.OnSuccess,
		OnFailure: n.OnFailure,
	}
	if n.Status != NotRun {
		v.Start = n.Start
		v.Elapsed = n.End.Sub(n.Start)
	}
	return json.Marshal(v)
}

// HostTrace holds the trees walked on one host, one per top-level task.
type HostTrace struct {
	Host  string      `json:"host"`
	Roots []*TaskNode `json:"tasks"`
}

// Run is the record of one workflow execution.
type Run struct {
	ID       uuid.UUID   `json:"id"`
	Workflow string      `json:"workflow"`
	Start    time.Time   `json:"startTime"`
	End      time.Time   `json:"endTime"`
	Success  bool        `json:"success"`
	Hosts    []HostTrace `json:"hosts"`
}

// Find returns the node of the named task on the given host, searching the
// trace in walk order.
func (r *Run) Find(host, task string) *TaskNode {
	for _, ht := range r.Hosts {
		if ht.Host != host {
			continue
		}
		for _, root := range ht.Roots {
			for stack := []*TaskNode{root}; len(stack) > 0; {
				n := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if n.Task.Name == task {
					return n
				}
				if n.OnFailure != nil {
					stack = append(stack, n.OnFailure)
				}
				if n.OnSuccess != nil {
					stack = append(stack, n.OnSuccess)
				}
			}
		}
	}
	return nil
}
