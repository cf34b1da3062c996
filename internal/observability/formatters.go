// Package observability provides formatted terminal output for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/jonathan/research-agent/internal/db"
	"github.com/jonathan/research-agent/internal/stream"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 72
	// topicWidth is how much of a topic a listing row shows
	topicWidth = 36
)

var (
	statusColor  = color.New(color.FgCyan).SprintFunc()
	successColor = color.New(color.FgGreen, color.Bold).SprintFunc()
	errorColor   = color.New(color.FgRed, color.Bold).SprintFunc()
	dimColor     = color.New(color.Faint).SprintFunc()
)

// Printer writes run progress and report listings to a terminal. It
// implements stream.FrameWriter so a local run can print directly.
type Printer struct {
	out io.Writer
	// midLine is set while streamed content has not ended with a newline.
	midLine bool
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// WriteFrame prints f. It never fails.
func (p *Printer) WriteFrame(f stream.Frame) error {
	p.PrintFrame(f)
	return nil
}

// PrintFrame prints one frame: status lines on their own line, report
// content as it arrives, and a closing line for terminal frames.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintFrame(f stream.Frame) {
	switch f.Type {
	case stream.TypeStatus:
		p.breakLine()
		fmt.Fprintf(p.out, "%s %s\n", statusColor("›"), statusColor(f.Message))
	case stream.TypeChunk:
		p.writeContent(f.Content)
	case stream.TypeText:
		p.breakLine()
		p.writeContent(f.Content)
		p.breakLine()
	case stream.TypeComplete:
		p.breakLine()
		fmt.Fprintf(p.out, "%s\n", successColor("✓ Complete"))
	case stream.TypeError:
		p.breakLine()
		fmt.Fprintf(p.out, "%s %s\n", errorColor("✗ Error:"), f.Message)
	}
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) writeContent(s string) {
	if s == "" {
		return
	}
	fmt.Fprint(p.out, s)
	p.midLine = !strings.HasSuffix(s, "\n")
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) breakLine() {
	if p.midLine {
		fmt.Fprintln(p.out)
		p.midLine = false
	}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintReports outputs a listing of saved reports in the order given.
func (p *Printer) PrintReports(reports []db.Report) {
	if len(reports) == 0 {
		p.printBox("SAVED REPORTS", "No reports saved yet.")
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-6s %-16s %-*s %s\n", "ID", "CREATED", topicWidth, "TOPIC", "CHARS")
	for i, r := range reports {
		fmt.Fprintf(&sb, "%-6d %-16s %-*s %d",
			r.ID, r.CreatedAt.Local().Format("2006-01-02 15:04"), topicWidth, truncate(r.Topic, topicWidth), len(r.Content))
		if i < len(reports)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox(fmt.Sprintf("SAVED REPORTS (%d)", len(reports)), sb.String())
}

// PrintReport outputs one report in full under a short header.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintReport(r db.Report) {
	fmt.Fprintf(p.out, "%s %s\n", successColor(fmt.Sprintf("#%d", r.ID)), r.Topic)
	fmt.Fprintf(p.out, "%s\n\n", dimColor(r.CreatedAt.Local().Format(time.RFC1123)))
	fmt.Fprintln(p.out, strings.TrimRight(r.Content, "\n"))
}

// PrintDeleted confirms a delete request.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintDeleted(requested int, deleted int64) {
	if int64(requested) == deleted {
		fmt.Fprintf(p.out, "%s deleted %d report(s)\n", successColor("✓"), deleted)
		return
	}
	fmt.Fprintf(p.out, "%s deleted %d of %d report(s)\n", errorColor("!"), deleted, requested)
}
