package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/newsroom-edge/internal/slug"
)

// newSlugCmd creates the 'slug' subcommand.
func newSlugCmd() *cobra.Command {
	var fallback string
	cmd := &cobra.Command{
		Use:   "slug <text>",
		Short: "Prints the URL slug and heading anchor for text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "slug:   %s\n", slug.Slugify(text))
			fmt.Fprintf(out, "anchor: %s\n", slug.AnchorOr(text, fallback))
			return nil
		},
	}
	cmd.Flags().StringVar(&fallback, "fallback", "section", "anchor used when the text normalizes to nothing")
	return cmd
}
