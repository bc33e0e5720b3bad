// Package output formats CLI-facing results: deployment summaries, resource
// listings, and invocation results, either as a human-readable table or as
// structured JSON/YAML for scripting.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format represents output format
type Format string

const (
	FormatTable Format = "table"
	FormatWide  Format = "wide"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "yaml", "yml":
		return FormatYAML
	case "wide":
		return FormatWide
	default:
		return FormatTable
	}
}

// Printer handles formatted output
type Printer struct {
	format  Format
	writer  io.Writer
	noColor bool
}

// NewPrinter creates a new printer
func NewPrinter(format Format) *Printer {
	return &Printer{
		format:  format,
		writer:  os.Stdout,
		noColor: os.Getenv("NO_COLOR") != "",
	}
}

// SetWriter sets the output writer
func (p *Printer) SetWriter(w io.Writer) {
	p.writer = w
}

// Print outputs data in the configured format
func (p *Printer) Print(data interface{}) error {
	switch p.format {
	case FormatJSON:
		return p.printJSON(data)
	case FormatYAML:
		return p.printYAML(data)
	default:
		return p.printJSON(data)
	}
}

func (p *Printer) printJSON(data interface{}) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (p *Printer) printYAML(data interface{}) error {
	enc := yaml.NewEncoder(p.writer)
	enc.SetIndent(2)
	return enc.Encode(data)
}

// Color codes
const (
	Reset   = "\033[0m"
	Bold    = "\033[1m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Blue    = "\033[34m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	Gray    = "\033[90m"
)

// Colorize adds color to text
func (p *Printer) Colorize(color, text string) string {
	if p.noColor {
		return text
	}
	return color + text + Reset
}

// TableWriter creates a tabwriter for aligned output
func (p *Printer) TableWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
}

// ResourceRow represents one declared resource in a listing.
type ResourceRow struct {
	Name       string `json:"name" yaml:"name"`
	Kind       string `json:"kind" yaml:"kind"`
	ResourceID string `json:"resource_id" yaml:"resource_id"`
	EndpointID string `json:"endpoint_id,omitempty" yaml:"endpoint_id,omitempty"`
	Replicas   int    `json:"replicas" yaml:"replicas"`
	Deployed   string `json:"deployed,omitempty" yaml:"deployed,omitempty"`
}

// PrintResources prints a resource listing.
func (p *Printer) PrintResources(rows []ResourceRow) error {
	if p.format == FormatJSON || p.format == FormatYAML {
		return p.Print(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(p.writer, "No resources deployed")
		return nil
	}

	w := p.TableWriter()
	if p.format == FormatWide {
		fmt.Fprintln(w, p.Colorize(Bold, "NAME\tKIND\tRESOURCE ID\tENDPOINT ID\tREPLICAS\tDEPLOYED"))
	} else {
		fmt.Fprintln(w, p.Colorize(Bold, "NAME\tKIND\tREPLICAS\tDEPLOYED"))
	}

	for _, row := range rows {
		if p.format == FormatWide {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
				p.Colorize(Cyan, row.Name), row.Kind, row.ResourceID, row.EndpointID, row.Replicas, row.Deployed)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				p.Colorize(Cyan, row.Name), row.Kind, row.Replicas, row.Deployed)
		}
	}

	return w.Flush()
}

// DeploymentSummaryRow is one line of a deploy-all results table.
type DeploymentSummaryRow struct {
	Name       string `json:"name" yaml:"name"`
	Status     string `json:"status" yaml:"status"`
	DurationMs int64  `json:"duration_ms" yaml:"duration_ms"`
	EndpointID string `json:"endpoint_id,omitempty" yaml:"endpoint_id,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// PrintDeploymentSummary prints the per-item results of a DeployAll run.
func (p *Printer) PrintDeploymentSummary(rows []DeploymentSummaryRow) error {
	if p.format == FormatJSON || p.format == FormatYAML {
		return p.Print(rows)
	}

	w := p.TableWriter()
	fmt.Fprintln(w, p.Colorize(Bold, "NAME\tSTATUS\tDURATION\tENDPOINT\tERROR"))

	var succeeded, cached, failed int
	for _, row := range rows {
		statusColor := Green
		switch row.Status {
		case "FAILED":
			statusColor = Red
			failed++
		case "CACHED":
			statusColor = Gray
			cached++
		default:
			succeeded++
		}
		fmt.Fprintf(w, "%s\t%s\t%dms\t%s\t%s\n",
			row.Name, p.Colorize(statusColor, row.Status), row.DurationMs, row.EndpointID, row.Error)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(p.writer, "\n%d succeeded, %d cached, %d failed (of %d)\n",
		succeeded, cached, failed, len(rows))
	return nil
}

// InvokeResult represents the outcome of one remote call.
type InvokeResult struct {
	RequestID  string          `json:"request_id" yaml:"request_id"`
	Success    bool            `json:"success" yaml:"success"`
	Output     json.RawMessage `json:"output,omitempty" yaml:"output,omitempty"`
	Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMs int64           `json:"duration_ms" yaml:"duration_ms"`
	Retries    int             `json:"retries,omitempty" yaml:"retries,omitempty"`
}

// PrintInvokeResult prints invocation result
func (p *Printer) PrintInvokeResult(result InvokeResult) error {
	if p.format == FormatJSON || p.format == FormatYAML {
		return p.Print(result)
	}

	fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Request ID:"), result.RequestID)
	fmt.Fprintf(p.writer, "%s %d ms\n", p.Colorize(Bold, "Duration:"), result.DurationMs)
	if result.Retries > 0 {
		fmt.Fprintf(p.writer, "%s %d\n", p.Colorize(Bold, "Retries:"), result.Retries)
	}

	if result.Error != "" {
		fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Error:"), p.Colorize(Red, result.Error))
		return nil
	}

	fmt.Fprintf(p.writer, "%s\n", p.Colorize(Bold, "Output:"))
	var pretty interface{}
	if err := json.Unmarshal(result.Output, &pretty); err == nil {
		formatted, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Fprintln(p.writer, string(formatted))
	} else {
		fmt.Fprintln(p.writer, string(result.Output))
	}
	return nil
}

// Success prints a success message
func (p *Printer) Success(format string, args ...interface{}) {
	fmt.Fprintln(p.writer, p.Colorize(Green, "✓ ")+fmt.Sprintf(format, args...))
}

// Error prints an error message
func (p *Printer) Error(format string, args ...interface{}) {
	fmt.Fprintln(p.writer, p.Colorize(Red, "✗ ")+fmt.Sprintf(format, args...))
}

// Warning prints a warning message
func (p *Printer) Warning(format string, args ...interface{}) {
	fmt.Fprintln(p.writer, p.Colorize(Yellow, "⚠ ")+fmt.Sprintf(format, args...))
}

// Info prints an info message
func (p *Printer) Info(format string, args ...interface{}) {
	fmt.Fprintln(p.writer, p.Colorize(Blue, "ℹ ")+fmt.Sprintf(format, args...))
}
