package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/driftwatch-project/driftwatch/internal/extract"
	"github.com/driftwatch-project/driftwatch/internal/monitor"
	"github.com/driftwatch-project/driftwatch/internal/notify"
	"github.com/driftwatch-project/driftwatch/internal/store"
	badgerStore "github.com/driftwatch-project/driftwatch/internal/store/badger"
	bboltStore "github.com/driftwatch-project/driftwatch/internal/store/bbolt"
	"github.com/driftwatch-project/driftwatch/internal/ui"
)

var (
	// persistent flags
	cfgFile          string
	enableDebugMode  bool
	truncateDebugLog bool

	// local flags
	dbPath        string
	backend       string
	noDurableSync bool
	filterExpr    string
	pollInterval  time.Duration
	headlessMode  bool
	onceMode      bool
)

// config is the file-level configuration, unmarshalled from viper.
type config struct {
	Targets  []extract.Target `mapstructure:"targets"`
	Webhook  string           `mapstructure:"webhook"`
	Interval time.Duration    `mapstructure:"interval"`
}

var rootCmd = &cobra.Command{
	Use:   "driftwatch [FLAGS] [TARGETS...]",
	Short: "Website Change Monitor",
	Long: `Driftwatch polls configured web pages, extracts a structured snapshot from
each and records every change between polls as a typed revision. You can explore
those revisions in a Terminal UI or collect them head-less and push them to a
webhook. Naming targets as arguments restricts the run to that subset.`,
	Args:              cobra.ArbitraryArgs,
	ValidArgsFunction: targetCompletion,
	PreRunE:           validateArgsAndFlags,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), args)
	},
}

var setupLog = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().
	Timestamp().
	Caller().
	Logger()

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	cobra.OnInitialize(initConfig)

	// global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.driftwatch.yaml)")
	rootCmd.PersistentFlags().BoolVar(&enableDebugMode, "debug", false,
		"Enable debug mode, which will print additional information to the debug.log file")
	rootCmd.PersistentFlags().BoolVar(&truncateDebugLog, "truncate-debug", false,
		"Truncate the debug.log file on startup, if it exists")

	// driftwatch command flags
	rootCmd.Flags().StringVarP(&dbPath, "db", "o", "",
		"Path to the revision database (default: temporary file)")
	rootCmd.Flags().StringVar(&backend, "backend", "bbolt",
		"Storage backend to use: bbolt or badger")
	rootCmd.Flags().StringVarP(&filterExpr, "filter", "f", "All()",
		"Filter expression to select which change records to report (default: all records)")
	rootCmd.Flags().DurationVarP(&pollInterval, "interval", "i", 5*time.Minute,
		"Default poll interval for targets that do not set their own")
	rootCmd.Flags().BoolVarP(&headlessMode, "headless", "H", false,
		"Run in headless mode, without TUI. Useful for collecting revisions only.")
	rootCmd.Flags().BoolVar(&onceMode, "once", false,
		"Check every target exactly once and exit (for cron-style setups)")
	rootCmd.Flags().BoolVar(&noDurableSync, "no-durable-sync", false,
		"Skip fsync on every commit to improve throughput (unsafe on crashes)")

	// allow some flags to be set via environment variables / config file
	mustBind("db",
		viper.BindPFlag("db", rootCmd.Flags().Lookup("db")))
	mustBind("backend",
		viper.BindPFlag("backend", rootCmd.Flags().Lookup("backend")))
	mustBind("debug",
		viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")))
	mustBind("truncate-debug",
		viper.BindPFlag("truncate-debug", rootCmd.PersistentFlags().Lookup("truncate-debug")))
	mustBind("interval",
		viper.BindPFlag("interval", rootCmd.Flags().Lookup("interval")))
	mustBind("no-durable-sync",
		viper.BindPFlag("no-durable-sync", rootCmd.Flags().Lookup("no-durable-sync")))
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".driftwatch")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		setupLog.Info().Msgf("Using config file: %s", viper.ConfigFileUsed())
	}
}

// run is the main entry point for the command execution.
func run(ctx context.Context, args []string) error {
	if enableDebugMode {
		setupLog.Info().Msg("Debug mode is enabled, setting up debug logger...")

		fileMode := os.O_CREATE | os.O_WRONLY
		if truncateDebugLog {
			fileMode |= os.O_TRUNC
		} else {
			fileMode |= os.O_APPEND
		}
		logFile, logError := os.OpenFile("debug.log", fileMode, 0o644)
		if logError != nil {
			setupLog.Fatal().Err(logError).Msg("Error opening debug log file")
		}
		defer func(logFile *os.File) {
			err := logFile.Close()
			if err != nil {
				setupLog.Error().Err(err).Msg("Error closing debug log file")
			}
		}(logFile)

		log.Logger = zerolog.New(logFile).With().
			Timestamp().
			Caller().
			Logger().
			Level(zerolog.DebugLevel)
	} else if headlessMode || onceMode {
		log.Logger = setupLog.Level(zerolog.InfoLevel)
	} else {
		// by default, we shouldn't log anything as this would break our TUI.
		log.Logger = zerolog.Nop()
	}

	var cfg config
	if err := viper.Unmarshal(&cfg); err != nil {
		setupLog.Fatal().Err(err).Msg("Error unmarshalling configuration")
	}
	targets, err := selectTargets(cfg.Targets, args)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("no targets configured, add a `targets:` section to the config file")
	}
	if cfg.Interval > 0 {
		pollInterval = cfg.Interval
	}

	if dbPath == "" {
		if backend == "badger" {
			// badger wants a directory, not a file
			dir, tmpErr := os.MkdirTemp("", "driftwatch-*")
			if tmpErr != nil {
				setupLog.Fatal().Err(tmpErr).Msg("Cannot create temp directory")
			}
			dbPath = dir
		} else {
			file, tmpErr := os.CreateTemp("", "driftwatch-*.db")
			if tmpErr != nil {
				setupLog.Fatal().Err(tmpErr).Msg("Cannot create temp file")
			}
			_ = file.Close()
			dbPath = file.Name()
		}

		setupLog.Info().Msgf("No database path specified, using temporary path: %s", dbPath)
	}

	setupLog.Info().
		Str("expression", filterExpr).
		Msg("Compiling filter expression...")
	prog, err := monitor.CompileFilter(filterExpr)
	if err != nil {
		setupLog.Fatal().Err(err).Msg("Error compiling filter expression")
	}

	setupLog.Info().
		Str("backend", backend).
		Str("db", dbPath).
		Msg("Preparing revision store...")
	st, err := openStore()
	if err != nil {
		setupLog.Fatal().Err(err).Msg("Error preparing store")
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			setupLog.Error().Err(closeErr).Msg("Error closing store")
		}
	}()

	tracker := monitor.NewTracker(st, extract.NewClient(log.Logger), prog, log.Logger)
	defer tracker.Close()

	// closing this context will stop the poller
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sinks := buildSinks(cfg, targets)

	if onceMode {
		return runOnce(ctx, tracker, targets, sinks)
	}

	poller, err := monitor.NewPoller(ctx, tracker,
		monitor.WithDefaultInterval(pollInterval),
		monitor.WithLogger(log.Logger))
	if err != nil {
		setupLog.Fatal().Err(err).Msg("Error creating poller")
	}
	defer poller.Stop()

	poller.RegisterHandler(deliverTo(ctx, sinks))

	for _, t := range targets {
		if addErr := poller.Add(t); addErr != nil {
			setupLog.Fatal().Err(addErr).Msgf("Cannot add target '%s' to poller", t.Name)
		}
	}

	if headlessMode {
		setupLog.Info().Msg("Running in headless mode")

		// drain the result stream so slow-consumer drops never trigger
		go func() {
			for range poller.Results() {
			}
		}()

		// we use [signal.Notify] instead of [signal.NotifyContext] here so
		// that a second interrupt kills the process the usual way.
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		<-c

		setupLog.Info().Msg("Received interrupt signal, stopping poller...")
		cancel()
		return nil
	}

	// interactive mode: the TUI displays revisions as they come in
	root := ui.NewRoot(ui.DarkTheme, st)
	if historyErr := root.LoadHistory(); historyErr != nil {
		setupLog.Error().Err(historyErr).Msg("Error loading history from database")
	}
	program := tea.NewProgram(root)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// wait until the program is ready to receive commands, so we don't
		// skip any results
		program.Send(nil)
		for res := range poller.Results() {
			program.Send(ui.ResultMsg{Result: res})
		}
	}()

	if _, teaErr := program.Run(); teaErr != nil {
		setupLog.Error().Err(teaErr).Msg("Error running TUI program")
	}

	setupLog.Info().Msg("TUI program exited, stopping poller")
	cancel()
	poller.Stop()
	wg.Wait()

	setupLog.Info().Msg("Poller stopped, bye!")
	return nil
}

func openStore() (store.SnapshotStore, error) {
	switch backend {
	case "badger":
		return badgerStore.New(dbPath, nil, !noDurableSync)
	default:
		return bboltStore.New(dbPath, nil, !noDurableSync)
	}
}

// selectTargets narrows the configured targets down to the named subset.
func selectTargets(configured []extract.Target, names []string) ([]extract.Target, error) {
	if len(names) == 0 {
		return configured, nil
	}
	byName := make(map[string]extract.Target, len(configured))
	for _, t := range configured {
		byName[t.Name] = t
	}
	out := make([]extract.Target, 0, len(names))
	for _, name := range names {
		t, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("target %q is not configured", name)
		}
		out = append(out, t)
	}
	return out, nil
}

// buildSinks resolves the notification sinks per target: the target's own
// webhook wins over the global one, and headless runs always log.
func buildSinks(cfg config, targets []extract.Target) map[string][]notify.Sink {
	webhooks := make(map[string]*notify.Webhook)
	sinks := make(map[string][]notify.Sink, len(targets))
	for _, t := range targets {
		var out []notify.Sink
		if headlessMode || onceMode {
			out = append(out, notify.LogSink{Log: log.Logger})
		}
		url := cfg.Webhook
		if t.Webhook != "" {
			url = t.Webhook
		}
		if url != "" {
			wh := webhooks[url]
			if wh == nil {
				wh = notify.NewWebhook(url)
				webhooks[url] = wh
			}
			out = append(out, wh)
		}
		sinks[t.Name] = out
	}
	return sinks
}

// deliverTo turns the sink map into a poller handler. Baseline and quiet
// results are not delivered.
func deliverTo(ctx context.Context, sinks map[string][]notify.Sink) monitor.Handler {
	return func(res monitor.Result) error {
		if res.First || len(res.Changes) == 0 {
			return nil
		}
		ev := notify.Event{
			Target:   res.Target,
			Revision: res.Revision,
			Taken:    res.Taken,
			Stats:    res.Stats,
			Changes:  res.Changes,
		}
		for _, s := range sinks[res.Target] {
			if err := s.Publish(ctx, ev); err != nil {
				log.Error().Err(err).Str("target", res.Target).Msg("Error publishing event")
			}
		}
		return nil
	}
}

// runOnce checks every target a single time, delivers the results and
// exits. Made for cron-style setups without a long-running process.
func runOnce(ctx context.Context, tracker *monitor.Tracker, targets []extract.Target, sinks map[string][]notify.Sink) error {
	deliver := deliverTo(ctx, sinks)
	var failed int
	for _, t := range targets {
		res, err := tracker.Check(ctx, t)
		if err != nil {
			log.Error().Err(err).Str("target", t.Name).Msg("Check failed")
			failed++
			continue
		}
		_ = deliver(*res)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(targets))
	}
	return nil
}

func validateArgsAndFlags(_ *cobra.Command, args []string) error {
	if backend != "bbolt" && backend != "badger" {
		return fmt.Errorf("unknown backend %q, expected bbolt or badger", backend)
	}
	return nil
}

func mustBind(flagName string, err error) {
	if err != nil {
		log.Fatal().Err(err).Msgf("Failed to bind flag %s", flagName)
	}
}
