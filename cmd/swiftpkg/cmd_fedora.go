package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"swiftpkg/internal/fedora"
)

// fedoraCmd prints the latest Fedora release and what follows it
var fedoraCmd = &cobra.Command{
	Use:   "fedora",
	Short: "Print the latest Fedora release and the next one",
	Long: `Queries the endoflife.date feed for the latest Fedora release, then checks
the Fedora mirrorlist to see whether the next release has been branched.
Prints "<latest> <next>", where next is either a version number or "rawhide".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.GetFedoraTimeout())
		defer cancel()

		client := fedora.NewClient(cfg.Fedora.EOLURL, cfg.Fedora.MirrorlistURL, cfg.GetFedoraTimeout(), logger)
		latest, err := client.LatestRelease(ctx)
		if err != nil {
			return err
		}
		next, err := client.NextRelease(ctx, latest)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", latest, next)
		return nil
	},
}
