package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/codeslinger/sendfile/src/internal/display"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the compiled zero-copy capability and resolved defaults",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		defer s.close()

		transferer, err := newTransferer(s.profile)
		if err != nil {
			return err
		}

		capability := transferer.Capability()

		if capability.Supported() {
			s.status.PrintSuccess(fmt.Sprintf("Zero-copy transfers available (%s)", capability))
		} else {
			s.status.PrintWarning(fmt.Sprintf("No zero-copy primitive on %s/%s", runtime.GOOS, runtime.GOARCH),
				"every transfer fails with an i/o error")
		}

		chunk := display.FormatBytes(transferer.MaxChunk())

		fields := [][2]string{
			{"capability", capability.String()},
			{"platform", runtime.GOOS + "/" + runtime.GOARCH},
			{"max chunk", chunk},
		}

		s.status.PrintFields(append(fields, profileFields(profile, s.profile)...))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
