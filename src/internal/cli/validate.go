package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeslinger/sendfile/src/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration files",
	Long: `Validate the syntax and semantics of sendfile configuration files.
This command checks for proper JSON/JSONC/TOML syntax, resolves profile
inheritance, fills defaults, and prints the resulting profile.

Examples:
  sendfile validate                            # Validate default config
  sendfile validate --config sendfile.toml     # Validate specific config
  sendfile validate --profile bulk             # Validate specific profile`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		s, err := newSession()
		if err != nil {
			fallbackStatus().PrintError("Configuration is invalid", err.Error())

			return err
		}
		defer s.close()

		source := s.configPath
		if source == "" {
			source = "built-in defaults"
		}

		s.status.PrintSuccess(fmt.Sprintf("Configuration is valid (%s)", source))
		s.status.PrintFields(profileFields(profile, s.profile))

		return nil
	},
}

func profileFields(name string, p *config.Profile) [][2]string {
	fields := [][2]string{
		{"profile", name},
		{"network", p.Network},
		{"address", orDash(p.Address)},
		{"offset", fmt.Sprint(p.Offset)},
		{"count", fmt.Sprint(p.Count)},
		{"nonblock", fmt.Sprint(p.Nonblock)},
		{"chunkSize", p.ChunkSize},
		{"verify", p.Verify},
	}

	if r := p.Retry; r != nil {
		fields = append(fields, [2]string{"retry", fmt.Sprintf("%d attempts, %s backoff from %s to %s (x%.1f)",
			r.MaxAttempts, r.Backoff, r.InitialDelay, r.MaxDelay, r.Multiplier)})
	}

	if sc := p.Server; sc != nil {
		fields = append(fields,
			[2]string{"server.listen", sc.Listen},
			[2]string{"server.root", orDash(sc.Root)},
			[2]string{"server.maxConns", fmt.Sprint(sc.MaxConns)},
			[2]string{"server.watch", fmt.Sprintf("%v (debounce %s)", sc.Watch, sc.Debounce)},
		)
	}

	if l := p.Log; l != nil {
		fields = append(fields, [2]string{"log", l.Level + " " + l.Format})
	}

	return fields
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
