// Command burnscar classifies parcels by slope and burn severity, renders a
// report per parcel and writes the cross-parcel table, owner summary and web
// map. Settings come from the environment; see internal/config.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "burnscar",
		Short:        "Burn severity by slope for land parcels",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(ownersCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var progress bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every parcel and write the batch outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return a.run(ctx, a.newRunner(), progress)
		},
	}

	cmd.Flags().BoolVar(&progress, "progress", false, "show a progress bar on stderr")
	return cmd
}

func serveCmd() *cobra.Command {
	var runFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the output directory with health and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return a.serve(ctx, runFirst)
		},
	}

	cmd.Flags().BoolVar(&runFirst, "run", false, "process the parcels before reporting ready")
	return cmd
}

func ownersCmd() *cobra.Command {
	var (
		dir       string
		owners    string
		exclude   string
		tiersFile string
	)

	cmd := &cobra.Command{
		Use:   "owners",
		Short: "Rebuild summary.html from an existing table.csv",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return writeOwners(dir, owners, exclude, tiersFile)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "out", "output directory holding table.csv")
	cmd.Flags().StringVar(&owners, "owners", "", "owners file (YAML or JSON)")
	cmd.Flags().StringVar(&exclude, "exclude", "", "boundary APN to leave out of the PRIVATE group")
	cmd.Flags().StringVar(&tiersFile, "tiers", "", "tiers file the table was built with")
	_ = cmd.MarkFlagRequired("owners")
	return cmd
}
