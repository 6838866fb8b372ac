package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/bastiangx/imeserve/internal/cli"
	"github.com/bastiangx/imeserve/internal/logger"
	"github.com/bastiangx/imeserve/internal/metrics"
	"github.com/bastiangx/imeserve/internal/utils"
	"github.com/bastiangx/imeserve/pkg/config"
	"github.com/bastiangx/imeserve/pkg/server"
	"github.com/bastiangx/imeserve/pkg/session"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	configPath  string
	dataDir     string
	debugMode   bool
	codetable   string
	perfectOnly bool
	watch       bool
	metricsAddr string
	limit       int
	verbose     bool

	rootCmd = &cobra.Command{
		Use:           AppName,
		Short:         "Code table input method engine served over msgpack-RPC",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve msgpack-RPC on stdin/stdout (default)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	replCmd = &cobra.Command{
		Use:   "repl",
		Short: "Type codes interactively and inspect the candidates",
		Args:  cobra.NoArgs,
		RunE:  runREPL,
	}

	lookupCmd = &cobra.Command{
		Use:   "lookup [text]",
		Short: "Print the codes of every entry whose text starts with text",
		Args:  cobra.ExactArgs(1),
		RunE:  runLookup,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Show current version",
		Args:  cobra.NoArgs,
		Run:   runVersion,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "Data directory holding codetable/")
	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "d", false, "Toggle debug mode")
	rootCmd.PersistentFlags().StringVar(&codetable, "codetable", "", "Code table file or name, overrides [engine] codetable")
	rootCmd.PersistentFlags().BoolVar(&perfectOnly, "perfect-only", false, "Only return perfect matches")

	for _, cmd := range []*cobra.Command{rootCmd, serveCmd} {
		cmd.Flags().BoolVar(&watch, "watch", false, "Reload the code table when the file changes")
		cmd.Flags().StringVar(&metricsAddr, "metrics", "", "Serve Prometheus metrics on this address")
	}
	replCmd.Flags().IntVar(&limit, "limit", 9, "Candidates to print per step (0 for all)")
	lookupCmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries to print (0 for all)")
	versionCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also print resolved paths")

	rootCmd.AddCommand(serveCmd, replCmd, lookupCmd, versionCmd)
}

// app is everything a command needs after flags and config are merged.
type app struct {
	cfg      *config.Config
	paths    *utils.PathResolver
	registry *session.Registry
	closeLog func() error
}

// setup loads the config, applies flag overrides, and starts logging.
func setup(cmd *cobra.Command) (*app, error) {
	cfg, usedPath, err := config.LoadConfigWithPriority(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("codetable") {
		cfg.Engine.CodeTable = codetable
	}
	if flags.Changed("perfect-only") {
		cfg.Engine.PerfectOnly = perfectOnly
	}
	if flags.Lookup("watch") != nil && flags.Changed("watch") {
		cfg.Dict.Watch = watch
	}
	if flags.Lookup("metrics") != nil && flags.Changed("metrics") {
		cfg.Metrics.Addr = metricsAddr
	}
	if debugMode {
		cfg.Log.Level = "debug"
	}

	closeLog, err := logger.Setup(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		closeLog()
		return nil, fmt.Errorf("config %s: %w", config.GetActiveConfigPath(usedPath), err)
	}
	log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(usedPath))

	paths := utils.NewPathResolver().WithDataDir(dataDir)
	return &app{
		cfg:      cfg,
		paths:    paths,
		registry: session.NewRegistry(cfg.SessionOptions(paths.ResolveCodetable)),
		closeLog: closeLog,
	}, nil
}

// initialize loads the configured engine.
func (a *app) initialize() error {
	engCfg, err := a.cfg.EngineConfiguration()
	if err != nil {
		return err
	}
	return a.registry.Initialize(engCfg)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.closeLog()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	// without a table the server still runs and waits for initialize
	initialized := false
	if a.cfg.Engine.CodeTable != "" {
		if err := a.initialize(); err != nil {
			log.Warnf("No engine loaded: %v. Waiting for initialize...", err)
		} else {
			initialized = true
		}
	}

	srv := server.NewServer(a.registry, os.Stdin, os.Stdout)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return srv.Serve(gctx)
	})
	if addr := a.cfg.Metrics.Addr; addr != "" {
		g.Go(func() error { return metrics.Serve(gctx, addr) })
	}
	if a.cfg.Dict.Watch && initialized {
		path := a.paths.ResolveCodetable(a.cfg.Engine.CodeTable)
		g.Go(func() error { return a.registry.WatchReload(gctx, path) })
	}

	showStartupInfo(a)

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		return err
	case <-sigCtx.Done():
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		return nil
	}
}

func runREPL(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.closeLog()

	if err := a.initialize(); err != nil {
		return err
	}
	return cli.NewInputHandler(a.registry, os.Stdin, os.Stdout, limit).Start()
}

func runLookup(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.closeLog()

	if err := a.initialize(); err != nil {
		return err
	}
	results, err := a.registry.Lookup(args[0], limit)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("no entries for %q", args[0])
	}
	for _, r := range results {
		fmt.Printf("%s\t%s\t%s\n", r.Text, r.Code, utils.FormatWithCommas(int(r.Priority)))
	}
	return nil
}

func runVersion(_ *cobra.Command, _ []string) {
	banner := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	banner.SetStyles(styles)

	banner.Print("")
	banner.Print("[ imeserve ] Code table input method engine")
	banner.Print("", "version", Version)
	banner.Print("")
	banner.Print("use -h or --help to see available options")
	banner.Print("Github Repo", "gh", gh)

	if verbose {
		info := utils.NewPathResolver().WithDataDir(dataDir).GetRuntimeInfo()
		keys := make([]string, 0, len(info))
		for k := range info {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		banner.Print("")
		for _, k := range keys {
			banner.Print(k, "value", info[k])
		}
	}
}

// showStartupInfo displays some basic info about the init process on stderr.
func showStartupInfo(a *app) {
	info := logger.New(AppName)
	info.SetLevel(log.InfoLevel)

	info.Infof("Version: %s", Version)
	info.Infof("Process ID: [ %d ]", os.Getpid())
	if eng, err := a.registry.Engine(); err == nil {
		info.Infof("engine: %s, keycodes: %d", eng.Kind(), len(eng.Keycodes()))
	} else {
		info.Info("engine: waiting for initialize")
	}
	info.Infof("data dir: ( %s )", a.paths.DataDir())
	if a.cfg.Metrics.Addr != "" {
		info.Infof("metrics: http://%s/metrics", a.cfg.Metrics.Addr)
	}
	info.Info("status: ready")
}
