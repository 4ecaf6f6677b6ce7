package cli

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/codeslinger/sendfile/src/internal/config"
	"github.com/codeslinger/sendfile/src/internal/display"
	"github.com/codeslinger/sendfile/src/internal/server"
	"github.com/codeslinger/sendfile/src/internal/verify"
)

var (
	serveRoot      string
	serveMaxConns  int
	serveWatch     bool
	serveDashboard bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [address]",
	Short: "Serve the files under a directory over the zero-copy path",
	Long: `Serve every regular file under --root. A client sends one line,
"<name> [offset [count]]", and gets back "OK <length>" followed by the bytes,
or "ERR <message>". With --watch the catalog follows changes on disk.

Examples:
  sendfile serve :9009 --root ./public
  sendfile serve :9009 --root ./public --watch --dashboard
  sendfile serve /tmp/files.sock --root . --max-conns 8`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		sc := s.profile.Server
		applyServeFlags(cmd, sc)

		if len(args) == 1 {
			sc.Listen = args[0]
		}

		if sc.Root == "" {
			return fmt.Errorf("no root directory: pass --root or set server.root in profile %s", profile)
		}

		algo, err := verify.ParseAlgorithm(s.profile.Verify)
		if err != nil {
			return err
		}

		transferer, err := newTransferer(s.profile)
		if err != nil {
			return err
		}

		scanner := verify.NewScanner(runtime.NumCPU(), algo)

		catalog, err := server.NewCatalog(sc.Root, scanner, s.logger)
		if err != nil {
			return err
		}

		ctx := cmd.Context()

		started := time.Now()
		if err := catalog.Refresh(ctx); err != nil {
			return fmt.Errorf("failed to scan %s: %w", sc.Root, err)
		}

		total := logCatalog(s.logger, catalog, scanner, time.Since(started))

		ln, err := listen(s.profile.Network, sc.Listen)
		if err != nil {
			return err
		}

		logListen(s.logger, ln)

		srv := server.New(sc, catalog, transferer, s.logger)

		if !serveDashboard {
			s.status.PrintInfo(fmt.Sprintf("Serving %d files (%s) from %s on %s", catalog.Len(), display.FormatBytes(total), catalog.Root(), ln.Addr()))
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return srv.Serve(gctx, ln)
		})

		if sc.Watch {
			g.Go(func() error {
				return catalog.Watch(gctx, sc.Debounce.Std())
			})
		}

		if serveDashboard {
			dash := display.NewDashboard(fmt.Sprintf("sendfile serve %s", ln.Addr()), srv.Stats(), 500*time.Millisecond)

			g.Go(func() error {
				dash.Run(gctx)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}

		snap := srv.Stats().Snapshot()
		fmt.Println()
		s.status.PrintSuccess("Server stopped",
			fmt.Sprintf("served %d requests, %d failed, %s sent", snap.Served, snap.Failed, display.FormatBytes(snap.Bytes)))

		return nil
	},
}

func applyServeFlags(cmd *cobra.Command, sc *config.ServerConfig) {
	flags := cmd.Flags()

	if flags.Changed("root") {
		sc.Root = serveRoot
	}

	if flags.Changed("max-conns") && serveMaxConns > 0 {
		sc.MaxConns = serveMaxConns
	}

	if flags.Changed("watch") {
		sc.Watch = serveWatch
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveRoot, "root", "", "directory to serve")
	serveCmd.Flags().IntVar(&serveMaxConns, "max-conns", 0, "maximum concurrent connections")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "follow changes under the root")
	serveCmd.Flags().BoolVar(&serveDashboard, "dashboard", false, "show live server counters")

	rootCmd.AddCommand(serveCmd)
}

// logCatalog logs every catalog entry at debug level followed by one summary
// line, and returns the total size served.
func logCatalog(logger *zap.Logger, catalog *server.Catalog, scanner *verify.Scanner, took time.Duration) int64 {
	var total int64
	for _, e := range catalog.Entries() {
		total += e.Size
		logger.Debug("catalog entry",
			zap.String("name", e.Name),
			zap.Int64("size", e.Size),
			zap.String("digest", e.Digest))
	}

	cached, cachedBytes := scanner.CacheStats()
	logger.Info("catalog ready",
		zap.String("root", catalog.Root()),
		zap.Int("files", catalog.Len()),
		zap.Int64("bytes", total),
		zap.Int("cachedDigests", cached),
		zap.Int64("cachedBytes", cachedBytes),
		zap.Duration("took", took))

	return total
}
