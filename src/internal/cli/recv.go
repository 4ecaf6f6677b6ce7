package cli

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codeslinger/sendfile/src/internal/display"
	"github.com/codeslinger/sendfile/src/internal/server"
	"github.com/codeslinger/sendfile/src/internal/verify"
)

var (
	recvOut    string
	recvLimit  int
	recvVerify string
)

var recvCmd = &cobra.Command{
	Use:   "recv [address]",
	Short: "Accept connections and collect what peers send",
	Long: `Listen for peers running "sendfile send" and drain every stream,
printing its size and digest. Streams are discarded unless --out is given;
with --out the first stream goes to that file and later ones get a numeric
suffix.

Examples:
  sendfile recv :9009                         # Count and hash, keep nothing
  sendfile recv :9009 --out disk.img --limit 1
  sendfile recv /tmp/peer.sock --verify sha256`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		address := s.profile.Server.Listen
		if len(args) == 1 {
			address = args[0]
		}

		algoName := s.profile.Verify
		if cmd.Flags().Changed("verify") {
			algoName = recvVerify
		}

		algo, err := verify.ParseAlgorithm(algoName)
		if err != nil {
			return err
		}

		if !algo.Enabled() {
			algo = verify.Blake3
		}

		ln, err := listen(s.profile.Network, address)
		if err != nil {
			return err
		}

		logListen(s.logger, ln)

		receiver := &server.Receiver{
			Algo:   algo,
			Logger: s.logger,
			Limit:  recvLimit,
		}

		if recvOut != "" {
			receiver.Open = numberedSinks(recvOut)
		}

		s.status.PrintInfo(fmt.Sprintf("Receiving on %s", ln.Addr()))

		renderer := display.NewReportRenderer(s.color)

		return receiver.Serve(cmd.Context(), ln, func(rc server.Receipt) {
			fmt.Println(renderer.RenderReceipt(rc))
		})
	},
}

// numberedSinks opens path for the first stream and path.N for the Nth after it.
func numberedSinks(path string) func(string) (io.WriteCloser, error) {
	var n atomic.Int64

	return func(string) (io.WriteCloser, error) {
		name := path
		if i := n.Add(1) - 1; i > 0 {
			name = fmt.Sprintf("%s.%d", path, i)
		}

		return os.Create(name)
	}
}

// listen opens a listener on address for the profile's network.
func listen(network, address string) (net.Listener, error) {
	if network == "" {
		network = "tcp"
	}

	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s %s: %w", network, address, err)
	}

	return ln, nil
}

func logListen(logger *zap.Logger, ln net.Listener) {
	logger.Info("listening", zap.String("network", ln.Addr().Network()), zap.String("address", ln.Addr().String()))
}

func init() {
	recvCmd.Flags().StringVarP(&recvOut, "out", "o", "", "file to store received streams in")
	recvCmd.Flags().IntVar(&recvLimit, "limit", 0, "stop after this many connections (0 = run until interrupted)")
	recvCmd.Flags().StringVar(&recvVerify, "verify", "", "digest to compute (blake3, sha256)")

	rootCmd.AddCommand(recvCmd)
}
