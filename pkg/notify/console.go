package notify

import (
	"fmt"
	"io"
	"sync"
)

// Console writes each notification to w under a subject banner.
type Console struct {
	mutex sync.Mutex
	w     io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Name() string {
	return "console"
}

func (c *Console) Notify(subject, message string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_, err := fmt.Fprintf(c.w, "== %s ==\n%s\n", subject, message)
	return err
}
