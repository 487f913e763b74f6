package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nexonsite/internal/blob"
	"nexonsite/internal/media"
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Inspect uploaded media",
}

var mediaListCmd = &cobra.Command{
	Use:   "list [prefix]",
	Short: "List stored media objects",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := media.DefaultFolder + "/"
		if len(args) == 1 {
			prefix = args[0]
		}
		store, err := blob.Open(cmd.Context(), cfg.Blob)
		if err != nil {
			return err
		}
		infos, err := store.List(cmd.Context(), prefix)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tSIZE\tTYPE\tURL")
		for _, info := range infos {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", info.Key, info.Size, info.ContentType, info.URL)
		}
		return tw.Flush()
	},
}

func init() {
	mediaCmd.AddCommand(mediaListCmd)
}
