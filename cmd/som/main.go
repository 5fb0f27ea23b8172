package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"som/analysis"
	"som/binfmt"
	"som/config"
	"som/diffstore"
	"som/explain"
	"som/fallback"
	"som/report"
	"som/state"
	"som/tokens"
)

// appName names the CLI binary itself in its usage and help text.
const appName = "som"

// exitCode is set by a subcommand's Action on a clean run to signal
// something other than plain success (1: analysis completed but at
// least one rule is nondeterministic, per spec's CLI exit contract).
// os.Exit happens once, in main, after app.Run returns, so any
// subcommand touching it runs to completion first.
var exitCode int

func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error

	if cmd.NArg() == 0 {
		return ctx, nil
	}

	env := state.EnvFromContext(ctx)

	configFile := cmd.String("config")
	if env.Cfg, err = config.LoadConfiguration(configFile); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	env.Overwrite = cmd.Bool("overwrite")

	if cmd.Bool("debug") {
		if env.Rpt, err = env.Cfg.Reporting.Prepare(); err != nil {
			return ctx, fmt.Errorf("unable to prepare debug reporter: %w", err)
		}
		if len(configFile) > 0 {
			if data, err := config.Dump(env.Cfg); err == nil {
				env.Rpt.StoreData(fmt.Sprintf("config/%s", filepath.Base(configFile)), data)
			}
		}
	}
	if env.Log, err = env.Cfg.Logging.Prepare(env.Rpt); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("runtime", runtime.Version()))

	if env.Rpt != nil {
		env.Log.Info("Creating debug report", zap.String("location", env.Rpt.Name()))
	}
	if len(configFile) == 0 {
		env.Log.Info("Using defaults (no configuration file)")
	}
	return ctx, nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	}

	env.RestoreStdLog()

	if env.Rpt != nil {
		if er := env.Rpt.Close(); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close debug report: %w", er))
		}
	}
	return
}

var errWasHandled bool

func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {
	env := state.EnvFromContext(ctx)
	if env.Log != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return err
}

func subcommandNotFoundHandler(ctx context.Context, _ *cli.Command, name string) {
	state.EnvFromContext(ctx).Log.Warn("Unknown command, nothing to do", zap.String("command", name))
}

func main() {
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            appName,
		Usage:           "static analyzer and binary compiler for stylesheet rule sets",
		Version:         runtime.Version(),
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		CommandNotFound: subcommandNotFoundHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "produce a debug report archive alongside the run"},
			&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "overwrite an existing output file"},
		},
		Commands: []*cli.Command{
			{
				Name:         "compile",
				Usage:        "Analyze stylesheet sources and emit a report, JSON summary, compiled binary, or snapshot diff",
				OnUsageError: usageErrorHandler,
				Action:       runCompile,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mode", Value: "report", Usage: "output `MODE`: report, json, binary, or diff"},
					&cli.StringFlag{Name: "tokens", Usage: "load an external custom-property token table from `FILE` (JSON)"},
					&cli.StringFlag{Name: "out", Usage: "write the compiled binary to `FILE` (required for binary mode)"},
					&cli.StringFlag{Name: "snapshot", Usage: "compare against the diff snapshot at `FILE` (required for diff mode)"},
				},
				ArgsUsage: "SOURCE [SOURCE...]",
			},
			{
				Name:         "explain",
				Usage:        "Explain one selector's position in the analyzed rule graph",
				OnUsageError: usageErrorHandler,
				Action:       runExplain,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tokens", Usage: "load an external custom-property token table from `FILE` (JSON)"},
				},
				ArgsUsage: "SELECTOR SOURCE [SOURCE...]",
			},
			{
				Name:         "diff",
				Usage:        "Compare an analysis run against a stored snapshot, optionally updating it",
				OnUsageError: usageErrorHandler,
				Action:       runDiff,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "snapshot", Required: true, Usage: "diff snapshot `FILE` (SQLite)"},
					&cli.BoolFlag{Name: "save", Usage: "after comparing, replace the snapshot with the current analysis"},
					&cli.StringFlag{Name: "tokens", Usage: "load an external custom-property token table from `FILE` (JSON)"},
				},
				ArgsUsage: "SOURCE [SOURCE...]",
			},
			{
				Name:  "dumpconfig",
				Usage: "Dumps either default or actual configuration (YAML)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				OnUsageError: usageErrorHandler,
				Action:       outputConfiguration,
				ArgsUsage:    "DESTINATION",
			},
		},
	}

	var err error
	defer func() {
		stop()
		if err != nil {
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(2)
		}
		os.Exit(exitCode)
	}()
	err = app.Run(ctx, os.Args)
}

// loadTokens merges every --tokens flag file with any JSON token
// tables discovered among the positional arguments themselves.
func loadTokens(flagPath string, discovered []map[string]string) (map[string]string, error) {
	tables := append([]map[string]string{}, discovered...)
	if flagPath != "" {
		t, err := tokens.LoadExternal(flagPath)
		if err != nil {
			return nil, fmt.Errorf("load external tokens: %w", err)
		}
		tables = append(tables, t)
	}
	return mergeTokenTables(tables), nil
}

func runCompile(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	sources, discoveredTables, err := gatherInputs(cmd.Args().Slice())
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("compile: no stylesheet sources given")
	}

	external, err := loadTokens(cmd.String("tokens"), discoveredTables)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	mode, err := config.ParseOutputMode(cmd.String("mode"))
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	res, err := analysis.NewAnalyzer(env.Log).Analyze(sources, analysis.Options{ExternalTokens: external})
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	out, err := binfmt.Emit(res.Arena)
	if err != nil {
		return fmt.Errorf("compile: emit binary: %w", err)
	}

	entries := fallback.Entries(res.Arena.All())
	fallbackText := fallback.Text(entries)

	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = s.Name
	}
	summary := report.Build(res.Arena.All(), res.Warnings, names, len(out.Bytes), len(fallbackText))

	switch mode {
	case config.OutputReport:
		fmt.Fprint(os.Stdout, renderSummaryText(summary))
	case config.OutputJSON:
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return fmt.Errorf("compile: marshal summary: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(data))
	case config.OutputBinary:
		if err := writeBinaryArtifacts(cmd.String("out"), env.Overwrite, out.Bytes, entries, fallbackText); err != nil {
			return fmt.Errorf("compile: %w", err)
		}
	case config.OutputDiff:
		snap := cmd.String("snapshot")
		if snap == "" {
			return fmt.Errorf("compile: --snapshot is required for diff mode")
		}
		d, err := diffstore.Compare(snap, res.Arena.All())
		if err != nil {
			return fmt.Errorf("compile: %w", err)
		}
		fmt.Fprint(os.Stdout, renderDiffText(d))
	}

	if env.Rpt != nil {
		if data, err := json.Marshal(summary); err == nil {
			env.Rpt.StoreData("summary.json", data)
		}
		env.Rpt.StoreData("binary.bsom", out.Bytes)
	}

	if summary.Counts.Nondeterministic > 0 {
		exitCode = 1
	}
	return nil
}

func writeBinaryArtifacts(path string, overwrite bool, binary []byte, entries []fallback.Entry, fallbackText string) error {
	if path == "" {
		return fmt.Errorf("--out is required for binary mode")
	}
	path = filepath.Join(filepath.Dir(path), config.CleanFileName(filepath.Base(path)))
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("output file already exists: %s (use --overwrite)", path)
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.WriteFile(path, binary, 0644); err != nil {
		return fmt.Errorf("write binary: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}
	if err := os.WriteFile(path+".fallback.txt", []byte(fallbackText), 0644); err != nil {
		return fmt.Errorf("write fallback text: %w", err)
	}
	mapData, err := json.MarshalIndent(fallback.ToStringMap(fallback.Map(entries)), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fallback map: %w", err)
	}
	if err := os.WriteFile(path+".fallback.json", mapData, 0644); err != nil {
		return fmt.Errorf("write fallback map: %w", err)
	}
	return nil
}

func runExplain(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	args := cmd.Args().Slice()
	if len(args) < 2 {
		return fmt.Errorf("explain: usage: som explain SELECTOR SOURCE [SOURCE...]")
	}
	selector := args[0]

	sources, discoveredTables, err := gatherInputs(args[1:])
	if err != nil {
		return fmt.Errorf("explain: %w", err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("explain: no stylesheet sources given")
	}

	external, err := loadTokens(cmd.String("tokens"), discoveredTables)
	if err != nil {
		return fmt.Errorf("explain: %w", err)
	}

	res, err := analysis.NewAnalyzer(env.Log).Analyze(sources, analysis.Options{ExternalTokens: external})
	if err != nil {
		return fmt.Errorf("explain: %w", err)
	}

	out, err := explain.Dump(res.Arena, selector)
	if err != nil {
		return fmt.Errorf("explain: %w", err)
	}
	fmt.Fprint(os.Stdout, out)
	return nil
}

func runDiff(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	sources, discoveredTables, err := gatherInputs(cmd.Args().Slice())
	if err != nil {
		return fmt.Errorf("diff: %w", err)
	}
	if len(sources) == 0 {
		return fmt.Errorf("diff: no stylesheet sources given")
	}

	external, err := loadTokens(cmd.String("tokens"), discoveredTables)
	if err != nil {
		return fmt.Errorf("diff: %w", err)
	}

	res, err := analysis.NewAnalyzer(env.Log).Analyze(sources, analysis.Options{ExternalTokens: external})
	if err != nil {
		return fmt.Errorf("diff: %w", err)
	}

	snap := cmd.String("snapshot")
	d, err := diffstore.Compare(snap, res.Arena.All())
	if err != nil {
		return fmt.Errorf("diff: %w", err)
	}
	fmt.Fprint(os.Stdout, renderDiffText(d))

	if cmd.Bool("save") {
		if err := diffstore.Save(snap, res.Arena.All()); err != nil {
			return fmt.Errorf("diff: save snapshot: %w", err)
		}
		env.Log.Info("Updated diff snapshot", zap.String("path", snap))
	}
	return nil
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	fname := cmd.Args().Get(0)

	var (
		err   error
		data  []byte
		state string
	)

	out := os.Stdout
	if len(fname) > 0 {
		out, err = os.Create(fname)
		if err != nil {
			return fmt.Errorf("unable to create destination file %q: %w", fname, err)
		}
		defer out.Close()
	}

	if cmd.Bool("default") {
		state = "default"
		data, err = config.Prepare()
	} else {
		state = "actual"
		data, err = config.Dump(env.Cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	if len(fname) == 0 {
		fname = "STDOUT"
	}
	env.Log.Info("Outputting configuration", zap.String("state", state), zap.String("file", fname))

	_, err = out.Write(data)
	if err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}
