package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/codeslinger/sendfile/src/internal/client"
	"github.com/codeslinger/sendfile/src/internal/config"
	"github.com/codeslinger/sendfile/src/internal/core"
	"github.com/codeslinger/sendfile/src/internal/display"
	"github.com/codeslinger/sendfile/src/internal/verify"
)

var (
	sendOffset   int64
	sendCount    int64
	sendNonblock bool
	sendVerify   string
	sendNetwork  string
)

var sendCmd = &cobra.Command{
	Use:   "send <file> [address]",
	Short: "Push a file, or a range of it, to a listening peer",
	Long: `Dial a peer and transfer the file through sendfile(2).
Without an address the profile's address is used.

Examples:
  sendfile send ./disk.img 10.0.0.2:9009              # Whole file
  sendfile send ./log 10.0.0.2:9009 --offset 1024     # From byte 1024 on
  sendfile send ./log /tmp/peer.sock --network unix   # Unix socket peer
  sendfile send ./big.iso host:9009 --nonblock        # Step through single attempts`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		p := s.profile
		applySendFlags(cmd, p)

		if err := config.ValidateProfile(p); err != nil {
			return err
		}

		logProfile(s.logger, p)

		address := p.Address
		if len(args) == 2 {
			address = args[1]
		}

		if address == "" {
			return fmt.Errorf("no address given and profile %s has none", profile)
		}

		algo, err := verify.ParseAlgorithm(p.Verify)
		if err != nil {
			return err
		}

		transferer, err := newTransferer(p)
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()

		ctx := cmd.Context()

		dialer := client.NewDialer(p.Network, client.NewRetrier(p.Retry), s.logger)

		conn, err := dialer.Dial(ctx, address)
		if err != nil {
			return err
		}
		defer conn.Close()

		dst, ok := conn.(core.Destination)
		if !ok {
			return fmt.Errorf("connection to %s does not expose a descriptor", address)
		}

		sender := client.NewSender(transferer, s.logger)
		sender.Nonblock = p.Nonblock
		sender.Verify = algo

		s.status.PrintProgress(fmt.Sprintf("Sending %s to %s", args[0], address))

		report, err := sender.Send(ctx, dst, f, client.Range{Offset: p.Offset, Count: p.Count})
		if err != nil {
			s.status.PrintError("Transfer failed", err.Error(), fmt.Sprintf("%s sent before the failure", display.FormatBytes(report.Bytes)))
			return err
		}

		fmt.Println(display.NewReportRenderer(s.color).RenderSend(report))

		return nil
	},
}

func applySendFlags(cmd *cobra.Command, p *config.Profile) {
	flags := cmd.Flags()

	if flags.Changed("offset") {
		p.Offset = sendOffset
	}

	if flags.Changed("count") {
		p.Count = sendCount
	}

	if flags.Changed("nonblock") {
		p.Nonblock = sendNonblock
	}

	if flags.Changed("verify") {
		p.Verify = sendVerify
	}

	if flags.Changed("network") {
		p.Network = sendNetwork
	}
}

// newTransferer builds the core transferer for a profile's chunk size.
func newTransferer(p *config.Profile) (*core.Transferer, error) {
	chunk, err := config.ParseSize(p.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("invalid chunkSize: %w", err)
	}

	if chunk > 0 {
		return core.New(core.WithMaxChunk(chunk)), nil
	}

	return core.New(), nil
}

func logProfile(logger *zap.Logger, p *config.Profile) {
	logger.Debug("profile resolved",
		zap.String("profile", profile),
		zap.String("network", p.Network),
		zap.String("chunkSize", p.ChunkSize),
		zap.String("verify", p.Verify),
		zap.Bool("nonblock", p.Nonblock))
}

func init() {
	sendCmd.Flags().Int64Var(&sendOffset, "offset", 0, "byte offset to start from")
	sendCmd.Flags().Int64Var(&sendCount, "count", 0, "number of bytes to send (0 = to end of file)")
	sendCmd.Flags().BoolVar(&sendNonblock, "nonblock", false, "drive single non-blocking attempts and explicit waits")
	sendCmd.Flags().StringVar(&sendVerify, "verify", "", "digest the sent range (none, blake3, sha256)")
	sendCmd.Flags().StringVar(&sendNetwork, "network", "", "network to dial (tcp, tcp4, tcp6, unix)")

	rootCmd.AddCommand(sendCmd)
}
