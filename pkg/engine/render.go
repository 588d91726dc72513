package engine

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var statusColors = map[Status]*color.Color{
	Succeeded: color.New(color.FgGreen),
	Failed:    color.New(color.FgRed),
	NotRun:    color.New(color.FgYellow),
}

type renderItem struct {
	node   *TaskNode
	prefix string
	last   bool
	depth  int
}

// RenderTrace writes the task trees of a run, one section per host. The
// success branch is listed before the failure branch.
func RenderTrace(w io.Writer, run *Run) {
	for _, ht := range run.Hosts {
		fmt.Fprintf(w, "host: %s\n", ht.Host)
		for _, root := range ht.Roots {
			renderTree(w, root)
		}
	}
}

func renderTree(w io.Writer, root *TaskNode) {
	for stack := []renderItem{{node: root, last: true}}; len(stack) > 0; {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		name := statusColors[item.node.Status].Sprint(item.node.Task.Name)
		if item.depth == 0 {
			fmt.Fprintln(w, name)
		} else {
			connector := "├── "
			if item.last {
				connector = "└── "
			}
			fmt.Fprintf(w, "%s%s[%s] %s\n", item.prefix, connector, item.node.Status, name)
		}

		var children []*TaskNode
		if item.node.OnSuccess != nil {
			children = append(children, item.node.OnSuccess)
		}
		if item.node.OnFailure != nil {
			children = append(children, item.node.OnFailure)
		}

		prefix := item.prefix
		if item.depth > 0 {
			if item.last {
				prefix += "    "
			} else {
				prefix += "│   "
			}
		}
		// pushed in reverse so the success branch is rendered first
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, renderItem{
				node:   children[i],
				prefix: prefix,
				last:   i == len(children)-1,
				depth:  item.depth + 1,
			})
		}
	}
}
