// Package main is the CLI entry point for overlaymon.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/eliteGoblin/focusd/overlay_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/domain"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/infra"
	"github.com/eliteGoblin/focusd/overlay_mon/internal/policy"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

var (
	colorOK    = color.New(color.FgGreen, color.Bold).SprintFunc()
	colorBad   = color.New(color.FgRed, color.Bold).SprintFunc()
	colorWarn  = color.New(color.FgYellow).SprintFunc()
	colorValue = color.New(color.FgWhite, color.Bold).SprintFunc()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "overlaymon",
	Short: "Focus overlay - covers distracting apps with a full-screen overlay",
	Long: `overlaymon watches which application has focus and, when it matches one
of your blocking rules, covers the screen with a full-screen overlay showing
an image and a motivational text. Tap the overlay the configured number of
times to dismiss it and return to the desktop.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start monitoring (launches the overlay daemon)",
	Long: `Launches the overlay daemon in the background and remembers that
monitoring is enabled, so 'overlaymon boot' resumes it after login.`,
	RunE: runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop monitoring and dismiss any overlay",
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status and configuration summary",
	RunE:  runStatus,
}

var bootCmd = &cobra.Command{
	Use:   "boot",
	Short: "Resume monitoring if it was enabled (run from session autostart)",
	RunE:  runBoot,
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage blocking rules",
}

var rulesSetCmd = &cobra.Command{
	Use:   "set FILE",
	Short: "Replace all rules with the JSON descriptors in FILE ('-' for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE:  runRulesSet,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored rules in match order",
	RunE:  runRulesList,
}

var rulesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the stored rules as JSON descriptors",
	RunE:  runRulesExport,
}

var blocklistCmd = &cobra.Command{
	Use:   "blocklist",
	Short: "Manage the legacy package blocklist",
}

var blocklistSetCmd = &cobra.Command{
	Use:   "set [PACKAGE...]",
	Short: "Replace the legacy blocklist (no arguments clears it)",
	RunE:  runBlocklistSet,
}

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List installed applications and their package names",
	RunE:  runApps,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Change runtime settings",
}

var configTapsCmd = &cobra.Command{
	Use:   "taps N",
	Short: "Set how many taps close the overlay (0 disables tap-to-close)",
	Long: `Sets the tap-to-close gesture. The taps must land within --timeout of
each other. The running daemon picks the change up on its next start.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigTaps,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

// Hidden daemon command - used for self-exec when spawning the daemon
var daemonCmd = &cobra.Command{
	Use:    daemon.DaemonCommand,
	Hidden: true,
	RunE:   runDaemon,
}

var (
	jsonOutput   bool
	debugLogging bool
	displayName  string
	tapTimeout   time.Duration
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "Log at debug level")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	appsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the app list as JSON")
	configTapsCmd.Flags().DurationVar(&tapTimeout, "timeout", infra.DefaultTapTimeout, "Max delay between taps")
	daemonCmd.Flags().StringVar(&displayName, "display", "", "X display (default $DISPLAY)")

	rulesCmd.AddCommand(rulesSetCmd, rulesListCmd, rulesExportCmd)
	blocklistCmd.AddCommand(blocklistSetCmd)
	configCmd.AddCommand(configTapsCmd)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(bootCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(blocklistCmd)
	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(daemonCmd)
}

// cliEnv is what every configuration command needs.
type cliEnv struct {
	paths  *infra.Paths
	store  *infra.EncryptedSettingsStore
	pm     domain.ProcessManager
	logger *zap.Logger
}

func openEnv() (*cliEnv, error) {
	paths := infra.DetectPaths()
	logger := createLogger(paths.LogPath)
	store, err := openStore(paths)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return &cliEnv{
		paths:  paths,
		store:  store,
		pm:     infra.NewProcessManager(),
		logger: logger,
	}, nil
}

func (e *cliEnv) Close() {
	_ = e.store.Close()
	_ = e.logger.Sync()
}

// controller returns a controller without a monitor; it edits the store
// and the running daemon is told to reload.
func (e *cliEnv) controller() *daemon.Controller {
	catalog := infra.NewDesktopCatalogFromEnv(infra.GetRealUserHome(), os.Getenv, e.pm, e.logger)
	return daemon.NewController(e.store, policy.NewStore(), catalog, nil, e.logger)
}

// runningDaemon returns the registered daemon if its process is alive.
func (e *cliEnv) runningDaemon() *domain.DaemonInfo {
	info, err := e.store.GetDaemon()
	if err != nil || info == nil {
		return nil
	}
	if !e.pm.IsRunning(info.PID) {
		return nil
	}
	return info
}

// notifyDaemon asks a running daemon to reload its configuration.
func (e *cliEnv) notifyDaemon() {
	info := e.runningDaemon()
	if info == nil {
		return
	}
	if err := e.pm.Signal(info.PID, syscall.SIGHUP); err != nil {
		fmt.Printf("Warning: could not notify daemon (pid %d): %v\n", info.PID, err)
		return
	}
	fmt.Println("Running daemon reloaded.")
}

func openStore(paths *infra.Paths) (*infra.EncryptedSettingsStore, error) {
	key, err := infra.EnsureKey(infra.NewKeyProvider(paths.DataDir))
	if err != nil {
		return nil, fmt.Errorf("failed to get store key: %w", err)
	}
	store, err := infra.NewEncryptedSettingsStore(paths.DataDir, key)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings store: %w", err)
	}
	return store, nil
}

func runStart(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.store.SetMonitoringEnabled(true); err != nil {
		return fmt.Errorf("failed to save monitoring state: %w", err)
	}

	if info := env.runningDaemon(); info != nil {
		fmt.Printf("overlaymon is already running (pid %d)\n", info.PID)
		return nil
	}

	if err := daemon.StartDaemon(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Wait a moment for the daemon to register
	time.Sleep(500 * time.Millisecond)

	fmt.Println("\n=== overlaymon Started ===")
	if info := env.runningDaemon(); info != nil {
		fmt.Printf("Status: %s (pid %d)\n", colorOK("MONITORING"), info.PID)
	} else {
		fmt.Printf("Status: %s (daemon not registered yet, see %s)\n", colorWarn("STARTING"), env.paths.LogPath)
	}
	fmt.Println("==========================")
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.store.SetMonitoringEnabled(false); err != nil {
		return fmt.Errorf("failed to save monitoring state: %w", err)
	}

	info := env.runningDaemon()
	if info == nil {
		fmt.Println("overlaymon is not running")
		return nil
	}
	if err := env.pm.Terminate(info.PID); err != nil {
		return fmt.Errorf("failed to stop daemon (pid %d): %w", info.PID, err)
	}
	fmt.Printf("overlaymon stopped (pid %d)\n", info.PID)
	return nil
}

func runBoot(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	settings, err := env.store.Settings()
	if err != nil {
		return fmt.Errorf("failed to read settings: %w", err)
	}
	if !settings.MonitoringEnabled {
		env.logger.Info("monitoring disabled, not resuming")
		return nil
	}
	if env.runningDaemon() != nil {
		return nil
	}

	env.logger.Info("resuming monitoring")
	if err := daemon.StartDaemon(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	fmt.Println("\n=== overlaymon Status ===")

	info, _ := env.store.GetDaemon()
	switch {
	case info == nil:
		fmt.Printf("Status: %s\n", colorBad("NOT RUNNING"))
	case !env.pm.IsRunning(info.PID):
		fmt.Printf("Status: %s (pid %d no longer exists)\n", colorWarn("STALE"), info.PID)
	default:
		fmt.Printf("Status: %s\n", colorOK("MONITORING"))
		fmt.Printf("PID: %s\n", colorValue(info.PID))
		fmt.Printf("Version: %s\n", info.AppVersion)
		fmt.Printf("Started: %s\n", humanize.Time(info.StartedAt))
	}

	settings, err := env.store.Settings()
	if err == nil {
		resume := colorWarn("disabled")
		if settings.MonitoringEnabled {
			resume = colorOK("enabled")
		}
		fmt.Printf("\nResume on boot: %s\n", resume)
		if settings.TapsToClose > 0 {
			fmt.Printf("Tap to close: %d taps within %s\n", settings.TapsToClose, settings.TapTimeout)
		} else {
			fmt.Println("Tap to close: disabled")
		}
	}

	ctrl := env.controller()
	if err := ctrl.Reload(); err != nil {
		fmt.Printf("Rules: %s\n", colorBad(err.Error()))
	} else {
		rules := ctrl.Rules()
		enabled := lo.CountBy(rules, func(r policy.Rule) bool { return r.Enabled })
		fmt.Printf("Rules: %d (%d enabled)\n", len(rules), enabled)
	}
	if packages, err := env.store.LoadBlocklist(); err == nil {
		fmt.Printf("Blocklist: %d packages\n", len(packages))
	}

	fmt.Printf("\nStore: %s%s\n", env.store.Path(), fileSize(env.store.Path()))
	fmt.Printf("Log: %s%s\n", env.paths.LogPath, fileSize(env.paths.LogPath))
	fmt.Println("=========================")
	return nil
}

func fileSize(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return " (" + humanize.Bytes(uint64(fi.Size())) + ")"
}

func runRulesSet(cmd *cobra.Command, args []string) error {
	raw, err := readInput(args[0])
	if err != nil {
		return err
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	n, err := env.controller().ReplaceRules(string(raw))
	if err != nil {
		return err
	}
	fmt.Printf("Saved %d rules.\n", n)
	env.notifyDaemon()
	return nil
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func runRulesList(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctrl := env.controller()
	if err := ctrl.Reload(); err != nil {
		return err
	}
	rules := ctrl.Rules()
	if len(rules) == 0 {
		fmt.Println("No rules. Use 'overlaymon rules set FILE' to add some.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tKIND\tPATTERN\tENABLED\tIMAGES\tTEXTS")
	for i, r := range rules {
		enabled := colorOK("yes")
		if !r.Enabled {
			enabled = colorWarn("no")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\n",
			i+1, r.Kind(), r.Pattern, enabled, len(r.ImagePaths), len(r.OverlayTexts))
	}
	return w.Flush()
}

func runRulesExport(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	ctrl := env.controller()
	if err := ctrl.Reload(); err != nil {
		return err
	}
	raw, err := ctrl.ExportRules()
	if err != nil {
		return err
	}
	fmt.Println(raw)
	return nil
}

func runBlocklistSet(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.controller().ReplaceBlocklist(args); err != nil {
		return err
	}
	packages, _ := env.store.LoadBlocklist()
	fmt.Printf("Blocklist saved (%d packages).\n", len(packages))
	env.notifyDaemon()
	return nil
}

func runApps(cmd *cobra.Command, args []string) error {
	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	apps, err := env.controller().ListInstalledApps()
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(apps)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPACKAGE\tSYSTEM")
	for _, app := range apps {
		fmt.Fprintf(w, "%s\t%s\t%t\n", app.DisplayName, app.Package, app.IsSystemApp)
	}
	return w.Flush()
}

func runConfigTaps(cmd *cobra.Command, args []string) error {
	taps, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid tap count %q: %w", args[0], err)
	}

	env, err := openEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if err := env.controller().SetTapConfig(taps, tapTimeout); err != nil {
		return err
	}
	if taps == 0 {
		fmt.Println("Tap to close disabled.")
	} else {
		fmt.Printf("Tap to close: %d taps within %s.\n", taps, tapTimeout)
	}
	if env.runningDaemon() != nil {
		fmt.Println("Restart the daemon ('overlaymon stop && overlaymon start') to apply.")
	}
	return nil
}

func createLogger(logPath string) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zap.InfoLevel
	if debugLogging {
		level = zap.DebugLevel
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		// Fallback to stderr if file logging is unavailable
		logger, _ := zap.NewProduction()
		return logger
	}

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	})
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), writer, level)
	return zap.New(core, zap.AddCaller())
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("overlaymon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
