package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeslinger/sendfile/src/internal/client"
	"github.com/codeslinger/sendfile/src/internal/display"
	"github.com/codeslinger/sendfile/src/internal/server"
	"github.com/codeslinger/sendfile/src/internal/verify"
)

var (
	fetchOut    string
	fetchOffset int64
	fetchCount  int64
	fetchVerify string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <address> <name>",
	Short: "Download a file from a sendfile server",
	Long: `Ask a "sendfile serve" instance for a file, or a range of it.
The body goes to --out, or to stdout when --out is not given; status
lines then go to stderr.

Examples:
  sendfile fetch :9009 docs/readme.md
  sendfile fetch :9009 disk.img --out disk.img --verify blake3
  sendfile fetch :9009 log.txt --offset 4096 --count 512`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		address, name := args[0], args[1]

		algoName := s.profile.Verify
		if cmd.Flags().Changed("verify") {
			algoName = fetchVerify
		}

		algo, err := verify.ParseAlgorithm(algoName)
		if err != nil {
			return err
		}

		req := server.Request{Name: name}

		if cmd.Flags().Changed("offset") {
			req.Offset, req.HasOffset = fetchOffset, true
		}

		if cmd.Flags().Changed("count") {
			req.Count, req.HasCount = fetchCount, true
		}

		var (
			out    io.Writer = os.Stdout
			report           = os.Stdout
		)

		if fetchOut != "" {
			f, err := os.Create(fetchOut)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", fetchOut, err)
			}
			defer f.Close()

			out = f
		} else {
			report = os.Stderr
		}

		ctx := cmd.Context()

		dialer := client.NewDialer(s.profile.Network, client.NewRetrier(s.profile.Retry), s.logger)

		conn, err := dialer.Dial(ctx, address)
		if err != nil {
			return err
		}
		defer conn.Close()

		res, err := client.Fetch(ctx, conn, req, out, algo)
		if err != nil {
			return fmt.Errorf("fetch %s failed: %w", name, err)
		}

		fmt.Fprintln(report, display.NewReportRenderer(s.color).RenderFetch(name, res, string(algo)))

		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOut, "out", "o", "", "file to write the body to (default stdout)")
	fetchCmd.Flags().Int64Var(&fetchOffset, "offset", 0, "byte offset to start from")
	fetchCmd.Flags().Int64Var(&fetchCount, "count", 0, "number of bytes to fetch")
	fetchCmd.Flags().StringVar(&fetchVerify, "verify", "", "digest the body (none, blake3, sha256)")

	rootCmd.AddCommand(fetchCmd)
}
