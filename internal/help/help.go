// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package help

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"docredact/internal/exporters"
	"docredact/internal/format"
)

// System prints usage and format help for the command line tool
type System struct {
	out     io.Writer
	noColor bool
	colors  map[string]*color.Color
}

// NewSystem creates a new help system writing to out
func NewSystem(out io.Writer, noColor bool) *System {
	// Disable colors if requested
	if noColor {
		color.NoColor = true
	}

	return &System{
		out:     out,
		noColor: noColor,
		colors: map[string]*color.Color{
			"title":   color.New(color.FgWhite, color.Bold),
			"header":  color.New(color.FgBlue, color.Bold),
			"item":    color.New(color.FgCyan),
			"example": color.New(color.FgMagenta),
		},
	}
}

// Color returns one of the named help colors
func (h *System) Color(name string) *color.Color {
	if c, ok := h.colors[name]; ok {
		return c
	}
	return color.New(color.Reset)
}

// ShowGeneralHelp displays general help information
func (h *System) ShowGeneralHelp() {
	h.colors["title"].Fprintln(h.out, "docredact - Document Redaction Pipeline")
	fmt.Fprintln(h.out, "=======================================")
	fmt.Fprintln(h.out)
	h.colors["header"].Fprintln(h.out, "USAGE:")
	fmt.Fprintln(h.out, "  docredact --serve [--addr <addr>]            # HTTP API")
	fmt.Fprintln(h.out, "  docredact --ingest <path>[,<path>...]        # extract text into the table")
	fmt.Fprintln(h.out, "  docredact --redact <path>[,<path>...]        # redact stored documents")
	fmt.Fprintln(h.out, "  docredact --export <format> [--files <paths>]")
	fmt.Fprintln(h.out)

	h.colors["header"].Fprintln(h.out, "OPTIONS:")
	w := tabwriter.NewWriter(h.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  --config\t<path>\tPath to configuration file (YAML)")
	fmt.Fprintln(w, "  --env-file\t<path>\tLoad environment variables from a .env file (default: .env)")
	fmt.Fprintln(w, "  --serve\t\tStart the HTTP API")
	fmt.Fprintln(w, "  --addr\t<addr>\tListen address for --serve (default from config, :8000)")
	fmt.Fprintln(w, "  --ingest\t<paths>\tComma separated stored paths to extract into the text table")
	fmt.Fprintln(w, "  --redact\t<paths>\tComma separated stored paths to redact")
	fmt.Fprintln(w, "  --only\t<formats>\tRestrict --redact to formats: pdf,markdown,excel,powerpoint")
	fmt.Fprintln(w, "  --export\t<format>\tExport stored text as markdown, excel or powerpoint")
	fmt.Fprintln(w, "  --files\t<paths>\tComma separated source paths for --export (default: whole table)")
	fmt.Fprintln(w, "  --limit\t<n>\tMaximum number of rows to export")
	fmt.Fprintln(w, "  --table\t<name>\tOverride the text table for this run")
	fmt.Fprintln(w, "  --json\t\tPrint results as JSON")
	fmt.Fprintln(w, "  --debug\t\tShow every pipeline step")
	fmt.Fprintln(w, "  --quiet\t\tOnly log failures")
	fmt.Fprintln(w, "  --no-color\t\tDisable colored output")
	fmt.Fprintln(w, "  --formats\t\tList supported formats")
	fmt.Fprintln(w, "  --version\t\tShow version information")
	fmt.Fprintln(w, "  --help\t\tShow this help")
	w.Flush()
	fmt.Fprintln(h.out)

	h.colors["header"].Fprintln(h.out, "EXAMPLES:")
	h.colors["example"].Fprintln(h.out, "  docredact --ingest /Volumes/docs/uploads/report.pdf")
	h.colors["example"].Fprintln(h.out, "  docredact --redact /Volumes/docs/uploads/report.pdf,/Volumes/docs/uploads/notes.md")
	h.colors["example"].Fprintln(h.out, "  docredact --export powerpoint --limit 5")
}

// ShowFormatsHelp lists the redaction and export formats
func (h *System) ShowFormatsHelp(tags []format.Tag, exports []exporters.FormatInfo) {
	h.colors["header"].Fprintln(h.out, "REDACTION FORMATS:")
	w := tabwriter.NewWriter(h.out, 0, 0, 2, ' ', 0)
	for _, tag := range tags {
		fmt.Fprintf(w, "  %s\t%s\n", h.colors["item"].Sprint(tag), strings.Join(format.ExtensionsFor(tag), ", "))
	}
	w.Flush()
	fmt.Fprintln(h.out)

	h.colors["header"].Fprintln(h.out, "EXPORT FORMATS:")
	w = tabwriter.NewWriter(h.out, 0, 0, 2, ' ', 0)
	for _, f := range exports {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", h.colors["item"].Sprint(f.Name), f.Extension, f.Description)
	}
	w.Flush()
}
