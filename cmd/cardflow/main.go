package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/hylla/cardflow/internal/adapters/notify"
	serveradapter "github.com/hylla/cardflow/internal/adapters/server"
	"github.com/hylla/cardflow/internal/adapters/storage/sqlite"
	"github.com/hylla/cardflow/internal/app"
	"github.com/hylla/cardflow/internal/config"
	"github.com/hylla/cardflow/internal/platform"
	"github.com/spf13/cobra"
)

// version stores a package-level helper value.
var version = "dev"

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run builds the command tree and executes args against it.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	root := newRootCommand(&cliOptions{})
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(strings.NewReader(""))
	return fang.Execute(ctx, root,
		fang.WithVersion(version),
		fang.WithoutManpage(),
		fang.WithNotifySignal(os.Interrupt, syscall.SIGTERM),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			_, _ = fmt.Fprintln(w, "error:", err)
		}),
	)
}

// cliOptions holds the persistent root flags.
type cliOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
	actor      string
	jsonOut    bool
}

func newRootCommand(opts *cliOptions) *cobra.Command {
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("CARDFLOW_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := platform.DefaultAppName
	if envApp := strings.TrimSpace(os.Getenv("CARDFLOW_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}

	root := &cobra.Command{
		Use:   "cardflow",
		Short: "Kanban card lifecycle and dependency engine",
		Long: "cardflow keeps kanban cards, their blocker dependencies and checklists consistent.\n" +
			"Every mutation records an activity; serve exposes the engine over REST and MCP.",
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", defaultApp, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")
	flags.StringVar(&opts.actor, "actor", "", "acting user recorded on activities (defaults to identity.actor_name)")
	flags.BoolVar(&opts.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		pathsCmd(opts),
		serveCmd(opts),
		boardCmd(opts),
		categoryCmd(opts),
		cardCmd(opts),
		depCmd(opts),
		checklistCmd(opts),
		importCmd(opts),
		releaseCmd(opts),
		activityCmd(opts),
		memberCmd(opts),
		notificationsCmd(opts),
		exportCmd(opts),
		restoreCmd(opts),
	)
	return root
}

func pathsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data and log locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: opts.appName, DevMode: opts.devMode})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

// runtimeEnv is everything a data command needs, opened per invocation.
type runtimeEnv struct {
	cfg        config.Config
	configPath string
	logger     *runtimeLogger
	repo       *sqlite.Repository
	svc        *app.Service
	actor      string
}

// withRuntime opens the runtime for one command, runs fn and releases it.
func withRuntime(cmd *cobra.Command, opts *cliOptions, fn func(context.Context, *runtimeEnv) error) error {
	env, err := openRuntime(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.close()

	name := cmd.CommandPath()
	env.logger.Debug("command flow start", "command", name)
	if err := fn(cmd.Context(), env); err != nil {
		env.logger.Debug("command flow failed", "command", name, "err", err)
		return err
	}
	env.logger.Debug("command flow complete", "command", name)
	return nil
}

// openRuntime resolves paths and config, then opens the repository and service.
func openRuntime(opts *cliOptions, stderr io.Writer) (*runtimeEnv, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{AppName: opts.appName, DevMode: opts.devMode})
	if err != nil {
		return nil, err
	}

	configPath := strings.TrimSpace(opts.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("CARDFLOW_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(opts.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("CARDFLOW_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(stderr, opts.appName, opts.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	logger.Debug("sqlite repository ready", "db_path", cfg.Database.Path)

	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		MaxCascadeDepth:   cfg.Engine.MaxCascadeDepth,
		ImportParallelism: cfg.Engine.ImportParallelism,
		ImportDueDays:     cfg.Engine.ImportDueDays,
		Logger:            logger,
	})
	if cfg.Notifications.Enabled {
		svc.Subscribe(notify.NewDispatcher(repo, logger))
	}

	actor := strings.TrimSpace(opts.actor)
	if actor == "" {
		actor = cfg.ActorName()
	}
	return &runtimeEnv{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		repo:       repo,
		svc:        svc,
		actor:      actor,
	}, nil
}

func (e *runtimeEnv) close() {
	if err := e.repo.Close(); err != nil {
		e.logger.Warn("sqlite close failed", "db_path", e.cfg.Database.Path, "err", err)
	}
	_ = e.logger.Close()
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// parseIDArg parses one positional identifier.
func parseIDArg(name, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// parseDateFlag parses an optional YYYY-MM-DD flag value.
func parseDateFlag(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD", raw)
	}
	return &t, nil
}
