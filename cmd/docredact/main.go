// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"docredact/internal/app"
	"docredact/internal/config"
	"docredact/internal/core"
	"docredact/internal/help"
	"docredact/internal/ingest"
	"docredact/internal/observability"
	"docredact/internal/version"
	"docredact/internal/web"
)

// cliFlags holds command line flag values
type cliFlags struct {
	configFile string
	envFile    string
	serve      bool
	addr       string
	ingest     string
	redact     string
	only       string
	export     string
	files      string
	limit      int
	table      string
	jsonOutput bool
	debug      bool
	quiet      bool
	noColor    bool
	formats    bool
	version    bool
	help       bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*cliFlags, error) {
	f := &cliFlags{}
	fs.StringVar(&f.configFile, "config", "", "Path to configuration file (YAML)")
	fs.StringVar(&f.envFile, "env-file", ".env", "Load environment variables from a .env file")
	fs.BoolVar(&f.serve, "serve", false, "Start the HTTP API")
	fs.StringVar(&f.addr, "addr", "", "Listen address for --serve")
	fs.StringVar(&f.ingest, "ingest", "", "Comma separated stored paths to extract into the text table")
	fs.StringVar(&f.redact, "redact", "", "Comma separated stored paths to redact")
	fs.StringVar(&f.only, "only", "", "Restrict --redact to these formats")
	fs.StringVar(&f.export, "export", "", "Export stored text as markdown, excel or powerpoint")
	fs.StringVar(&f.files, "files", "", "Comma separated source paths for --export")
	fs.IntVar(&f.limit, "limit", 0, "Maximum number of rows to export")
	fs.StringVar(&f.table, "table", "", "Override the text table for this run")
	fs.BoolVar(&f.jsonOutput, "json", false, "Print results as JSON")
	fs.BoolVar(&f.debug, "debug", false, "Show every pipeline step")
	fs.BoolVar(&f.quiet, "quiet", false, "Only log failures")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&f.formats, "formats", false, "List supported formats")
	fs.BoolVar(&f.version, "version", false, "Show version information")
	fs.BoolVar(&f.help, "help", false, "Show help information")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return f, nil
}

// mode returns the single action selected on the command line
func (f *cliFlags) mode() (string, error) {
	var modes []string
	if f.serve {
		modes = append(modes, "serve")
	}
	if f.ingest != "" {
		modes = append(modes, "ingest")
	}
	if f.redact != "" {
		modes = append(modes, "redact")
	}
	if f.export != "" {
		modes = append(modes, "export")
	}
	switch len(modes) {
	case 0:
		return "", nil
	case 1:
		return modes[0], nil
	default:
		return "", fmt.Errorf("--%s cannot be combined with --%s", modes[0], modes[1])
	}
}

func main() {
	flags, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	os.Exit(run(flags, os.Stdout, os.Stderr))
}

func run(flags *cliFlags, stdout, stderr io.Writer) int {
	if flags.noColor || !isTerminal(os.Stdout) {
		color.NoColor = true
	}
	helpSystem := help.NewSystem(stdout, color.NoColor)

	if flags.version {
		fmt.Fprintln(stdout, version.Current())
		return 0
	}
	if flags.formats {
		helpSystem.ShowFormatsHelp(core.AllFormats(), core.BuildExporterRegistry().GetSupportedFormats())
		return 0
	}
	mode, err := flags.mode()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if flags.help || mode == "" {
		helpSystem.ShowGeneralHelp()
		if mode == "" && !flags.help {
			return 2
		}
		return 0
	}

	config.LoadDotEnv(flags.envFile)
	cfg, err := config.LoadConfigOrDefault(flags.configFile)
	if err != nil {
		if flags.configFile != "" {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "Warning: Error loading config file: %v\n", err)
		fmt.Fprintf(stderr, "Using default configuration\n")
	}
	if flags.addr != "" {
		cfg.Server.Addr = flags.addr
	}

	observer := newObserver(cfg, flags, stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, observer)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()

	settings := a.Runtime.Snapshot()
	if flags.table != "" {
		settings.TablePath = flags.table
	}

	switch mode {
	case "serve":
		err = serve(ctx, a)
	case "ingest":
		err = runIngest(ctx, a, settings, flags, stdout)
	case "redact":
		err = runRedact(ctx, a, settings, flags, stdout)
	case "export":
		err = runExport(ctx, a, settings, flags, stdout)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newObserver(cfg *config.Config, flags *cliFlags, stderr io.Writer) *observability.StandardObserver {
	switch {
	case flags.debug:
		return observability.NewDebugObserver(stderr).StandardObserver
	case flags.quiet:
		handler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelError})
		return observability.NewStandardObserverWithLogger(observability.ObservabilityOff, slog.New(handler))
	default:
		return observability.NewStandardObserver(observability.ParseLevel(cfg.Logging.Level), stderr)
	}
}

func serve(ctx context.Context, a *app.App) error {
	server := web.NewWebServer(a.Config.Server.Addr, a.WebDependencies())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}
	return <-errCh
}

func runIngest(ctx context.Context, a *app.App, settings config.Settings, flags *cliFlags, stdout io.Writer) error {
	res, err := a.Ingest.Ingest(ctx, settings, splitList(flags.ingest))
	if err != nil {
		return err
	}
	if flags.jsonOutput {
		return printJSON(stdout, res)
	}
	fmt.Fprintf(stdout, "Wrote %d row(s) to %s\n", res.Rows, res.Table)
	for _, f := range res.Files {
		line := fmt.Sprintf("  %-20s %s", f.Status, f.Path)
		if f.Error != "" {
			line += " (" + f.Error + ")"
		}
		statusColor(f.Status).Fprintln(stdout, line)
	}
	return nil
}

func runRedact(ctx context.Context, a *app.App, settings config.Settings, flags *cliFlags, stdout io.Writer) error {
	var opts core.RedactOptions
	if flags.only != "" {
		enabled := core.ParseFormats(splitList(flags.only))
		for _, tag := range core.AllFormats() {
			if enabled[tag] {
				opts.OnlyFormats = append(opts.OnlyFormats, tag)
			}
		}
		if len(opts.OnlyFormats) == 0 {
			return fmt.Errorf("no supported format in --only %q", flags.only)
		}
	}

	outcomes, err := a.Orchestrator.Redact(ctx, settings, splitList(flags.redact), opts)
	if err != nil {
		return err
	}
	if flags.jsonOutput {
		return printJSON(stdout, map[string]interface{}{"redacted_files": outcomes})
	}
	printOutcomes(stdout, outcomes)
	return nil
}

func runExport(ctx context.Context, a *app.App, settings config.Settings, flags *cliFlags, stdout io.Writer) error {
	res, err := a.Exporter.Export(ctx, settings, splitList(flags.files), flags.limit, flags.export)
	if err != nil {
		return err
	}
	if flags.jsonOutput {
		return printJSON(stdout, res)
	}
	color.New(color.FgGreen).Fprintf(stdout, "Exported %d source file(s) to %s\n", res.SourceFiles, res.FilePath)
	fmt.Fprintf(stdout, "  format: %s, size: %d bytes\n", res.Format, res.Size)
	return nil
}

// printOutcomes prints one colored line per redaction outcome and a summary
func printOutcomes(w io.Writer, outcomes []core.Outcome) {
	counts := make(map[string]int)
	for _, o := range outcomes {
		counts[o.Status]++
		line := fmt.Sprintf("  %-26s %s", o.Status, o.OriginalFile)
		switch {
		case o.Status == core.StatusRedacted:
			line += fmt.Sprintf(" -> %s (%d entities)", o.RedactedFile, o.EntitiesCount)
		case o.Error != "":
			line += " (" + o.Error + ")"
		}
		statusColor(o.Status).Fprintln(w, line)
	}
	fmt.Fprintf(w, "\n%d file(s): %d redacted, %d without entities, %d failed\n",
		len(outcomes), counts[core.StatusRedacted], counts[core.StatusNoEntitiesFound], counts[core.StatusFailed])
}

func statusColor(status string) *color.Color {
	switch status {
	case core.StatusRedacted, ingest.StatusExtracted:
		return color.New(color.FgGreen)
	case core.StatusFailed, ingest.StatusExtractionFailed, ingest.StatusNotFound:
		return color.New(color.FgRed)
	case core.StatusNoEntitiesFound:
		return color.New(color.Reset)
	default:
		return color.New(color.FgYellow)
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// splitList splits a comma separated flag value, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// isTerminal checks if the file descriptor is a terminal
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
