package scheduler

import (
	"bytes"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

const statusTimeFormat = "2006-01-02 15:04:05"

func formatTime(t time.Time, zero string) string {
	if t.IsZero() {
		return zero
	}
	return t.Format(statusTimeFormat)
}

func jobResult(info JobInfo) string {
	switch {
	case info.Runs == 0:
		return "-"
	case info.LastError != "":
		return "error: " + info.LastError
	case info.LastSuccess:
		return "ok"
	default:
		return "failed"
	}
}

// RenderStatus writes a table with one row per job and returns the number
// of lines written.
func RenderStatus(w io.Writer, jobs []JobInfo) int {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "=== scheduler status (%d jobs) ===\n", len(jobs))

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS\tLAST RUN\tNEXT RUN\tSCHEDULE\tMODE\tRUNS\tRESULT")
	for _, info := range jobs {
		status := "idle"
		if info.Running {
			status = "running"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			info.Name,
			status,
			formatTime(info.LastRun, "never"),
			formatTime(info.NextRun, "-"),
			info.Schedule,
			info.Mode,
			info.Runs,
			jobResult(info))
	}
	tw.Flush()

	w.Write(buf.Bytes())
	return bytes.Count(buf.Bytes(), []byte("\n"))
}
