// Package cli provides the sendfile command line: pushing files to peers,
// receiving streams, serving a directory over the zero-copy path, and the
// helpers that load profiles and build loggers for those commands.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/codeslinger/sendfile/src/internal/config"
	"github.com/codeslinger/sendfile/src/internal/display"
)

var (
	configFile string
	profile    string
	verbose    bool
	logLevel   string
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "sendfile",
	Short: "Zero-copy file transfer over sockets",
	Long: `Sendfile moves file contents to sockets with the kernel's sendfile(2)
primitive, so the bytes never pass through user space.

Examples:
  sendfile send ./disk.img 10.0.0.2:9009      # Push a file to a peer
  sendfile recv :9009 --out disk.img          # Collect what a peer sends
  sendfile serve :9009 --root ./public        # Serve a directory
  sendfile fetch :9009 docs/readme.md         # Ask a server for a file
  sendfile info                               # Show the compiled capability`,
	SilenceUsage: true,
}

// SetVersionInfo sets the version information for the CLI.
func SetVersionInfo(version, buildTime, commit string) {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf(`sendfile version %s
Build time: %s
Commit: %s
`, version, buildTime, commit))
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context so long-running commands shut down cleanly.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is sendfile.jsonc)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", config.DefaultProfile, "configuration profile to use")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// session bundles what every command needs once flags are parsed.
type session struct {
	configPath string
	profile    *config.Profile
	logger     *zap.Logger
	status     *display.StatusRenderer
	color      bool
}

func (s *session) close() {
	_ = s.logger.Sync()
}

func newSession() (*session, error) {
	loader := config.NewLoader()

	path := configFile
	if path == "" {
		path = loader.FindDefaultConfig()
	}

	cfg, err := loader.Load(path)
	if err != nil {
		return nil, err
	}

	p, err := cfg.Profile(profile)
	if err != nil {
		return nil, err
	}

	logCfg := *p.Log

	switch {
	case logLevel != "":
		logCfg.Level = logLevel
	case verbose:
		logCfg.Level = "debug"
	}

	logger, err := newLogger(&logCfg)
	if err != nil {
		return nil, err
	}

	colorEnabled := !noColor && term.IsTerminal(int(os.Stdout.Fd()))

	return &session{
		configPath: path,
		profile:    p,
		logger:     logger,
		status:     display.NewStatusRenderer(os.Stdout, colorEnabled, false),
		color:      colorEnabled,
	}, nil
}

// fallbackStatus renders status lines when no session could be built.
func fallbackStatus() *display.StatusRenderer {
	return display.NewStatusRenderer(os.Stderr, !noColor && term.IsTerminal(int(os.Stderr.Fd())), false)
}
