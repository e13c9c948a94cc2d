// Package cli holds the output helpers shared by the dirplan commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat accepts text, json or yaml.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unsupported output format: %s", s)
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
)

// Printer writes command results and status lines.
type Printer struct {
	Out     io.Writer
	Err     io.Writer
	Format  OutputFormat
	NoColor bool
	Quiet   bool
}

func (p *Printer) marker(style lipgloss.Style, symbol, plain string) string {
	if p.NoColor {
		return plain
	}
	return style.Render(symbol)
}

// Success prints a success message unless quiet mode is enabled. Status
// lines go to Err when the result itself is structured output.
func (p *Printer) Success(format string, args ...any) {
	if p.Quiet {
		return
	}
	fmt.Fprintf(p.statusWriter(), "%s %s\n", p.marker(successStyle, "✓", "OK:"), fmt.Sprintf(format, args...))
}

// Info prints an info message unless quiet mode is enabled.
func (p *Printer) Info(format string, args ...any) {
	if p.Quiet {
		return
	}
	fmt.Fprintf(p.statusWriter(), "%s %s\n", p.marker(infoStyle, "ℹ", "INFO:"), fmt.Sprintf(format, args...))
}

// Warning prints a warning message to Err.
func (p *Printer) Warning(format string, args ...any) {
	fmt.Fprintf(p.Err, "%s %s\n", p.marker(warnStyle, "⚠", "WARNING:"), fmt.Sprintf(format, args...))
}

// Error prints an error message to Err.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintf(p.Err, "%s %s\n", p.marker(errorStyle, "✗", "ERROR:"), fmt.Sprintf(format, args...))
}

func (p *Printer) statusWriter() io.Writer {
	if p.Format == FormatText || p.Format == "" {
		return p.Out
	}
	return p.Err
}

// Result writes data as JSON or YAML, or calls text for the text format.
func (p *Printer) Result(data any, text func(w io.Writer)) error {
	switch p.Format {
	case FormatJSON:
		encoder := json.NewEncoder(p.Out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)

	case FormatYAML:
		yamlData, err := yaml.Marshal(data)
		if err != nil {
			return err
		}
		fmt.Fprint(p.Out, string(yamlData))
		return nil

	case FormatText, "":
		text(p.Out)
		return nil

	default:
		return fmt.Errorf("unsupported output format: %s", p.Format)
	}
}

// Header renders a section title.
func (p *Printer) Header(title string) string {
	if p.NoColor {
		return title
	}
	return headerStyle.Render(title)
}

// TableFormatter helps format tabular output
type TableFormatter struct {
	writer *tabwriter.Writer
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(w io.Writer) *TableFormatter {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	return &TableFormatter{writer: tw}
}

// Header writes the table header
func (t *TableFormatter) Header(columns ...string) {
	fmt.Fprintln(t.writer, strings.Join(columns, "\t"))
}

// Row writes a table row
func (t *TableFormatter) Row(values ...string) {
	fmt.Fprintln(t.writer, strings.Join(values, "\t"))
}

// Flush writes the buffered table to output
func (t *TableFormatter) Flush() {
	t.writer.Flush()
}

// FormatBytes formats byte count in human-readable format
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
