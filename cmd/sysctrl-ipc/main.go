package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/srediag/sysctrl-ipc/internal/config"
	"github.com/srediag/sysctrl-ipc/internal/logger"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

var (
	// CLI flags
	cfgFile       string
	logLevel      string
	logFormat     string
	logOutput     string
	transportKind string
	adminAddress  string
	count         int
	interval      time.Duration
	once          bool

	rootLog *logger.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sysctrl-ipc",
	Short: "Asynchronous IPC backend to the system controller",
	Long: `sysctrl-ipc drives an IPC endpoint to the system controller: it opens the
transport, waits for the peer to bind, queues outbound messages for a single
transmitter and hands inbound messages to a dispatcher.

The run command links the endpoint to a simulated system controller that echoes
every message back, and serves /metrics, /live and /ready.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an endpoint against a simulated system controller",
	RunE:  runNode,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sysctrl-ipc version %s\n", Version)
	},
}

// runNode executes the run command
func runNode(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := initLogger(cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = rootLog.Close() }()
	rootLog.Info("Starting sysctrl-ipc", "version", Version, "config", cfg.String())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := newNode(cfg, rootLog)
	if err != nil {
		return err
	}
	defer n.Close()

	if err := n.Start(ctx); err != nil {
		return err
	}
	return n.Run(ctx, runOptions{Count: count, Interval: interval, Once: once})
}

// loadConfig loads the configuration file and applies CLI overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	if logOutput != "" {
		cfg.Logging.Output = logOutput
	}
	if transportKind != "" {
		cfg.Transport.Kind = transportKind
	}
	if adminAddress != "" {
		cfg.Admin.Address = adminAddress
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger initializes the root logger
func initLogger(cfg config.LoggingConfig) error {
	log, err := logger.New(cfg)
	if err != nil {
		return err
	}
	rootLog = log
	return nil
}

func main() {
	// Config file flag
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file path (default: built-in defaults)")

	// Logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn, error (default: from config or env)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format: json, text (default: from config or env)")
	rootCmd.PersistentFlags().StringVar(&logOutput, "log-output", "",
		"Log output: stdout, stderr, or file path (default: from config or env)")

	// Run flags
	runCmd.Flags().StringVar(&transportKind, "transport", "",
		"Transport: loopback, seqpacket (default: from config or env)")
	runCmd.Flags().StringVar(&adminAddress, "admin-address", "",
		"Address serving /metrics, /live and /ready (default: 127.0.0.1:9464)")
	runCmd.Flags().IntVar(&count, "count", 10,
		"Number of messages to send once connected")
	runCmd.Flags().DurationVar(&interval, "interval", 100*time.Millisecond,
		"Delay between messages")
	runCmd.Flags().BoolVar(&once, "once", false,
		"Exit after every message has been echoed back")

	rootCmd.AddCommand(runCmd, versionCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if rootLog != nil {
			rootLog.Error("Command execution failed", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, "Command execution failed:", err)
		}
		os.Exit(1)
	}
}
