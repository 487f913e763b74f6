package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nexonsite/internal/core"
	"nexonsite/internal/ordering"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Inspect and reorder portfolio items in the configured store",
}

var portfolioListCmd = &cobra.Command{
	Use:   "list",
	Short: "List portfolio items in display order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		items, err := svc.ListPortfolio(systemContext(cmd.Context()))
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ORDER\tID\tTITLE\tTAGS")
		for _, item := range items {
			order := "-"
			if item.Order != nil {
				order = fmt.Sprint(*item.Order)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", order, item.ID, item.Title, strings.Join(item.Tags, ","))
		}
		return tw.Flush()
	},
}

var portfolioMoveCmd = &cobra.Command{
	Use:   "move <id> <up|down>",
	Short: "Move a portfolio item one position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := ordering.ParseDirection(args[1])
		if err != nil {
			return err
		}
		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		outcome, err := svc.MovePortfolioItem(systemContext(cmd.Context()), args[0], dir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", args[0], dir, outcome)
		return nil
	},
}

var (
	addCategory  string
	addThumbnail string
	addTags      []string
)

var portfolioAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Append a portfolio item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, closeStore, err := openService()
		if err != nil {
			return err
		}
		defer closeStore()

		item, _, err := svc.CreatePortfolioItem(systemContext(cmd.Context()), core.PortfolioItem{
			Title:        args[0],
			Category:     addCategory,
			ThumbnailURL: addThumbnail,
			Tags:         addTags,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), item.ID)
		return nil
	},
}

func init() {
	portfolioAddCmd.Flags().StringVar(&addCategory, "category", "", "Project category")
	portfolioAddCmd.Flags().StringVar(&addThumbnail, "thumbnail", "", "Thumbnail URL")
	portfolioAddCmd.Flags().StringSliceVar(&addTags, "tag", nil, "Tag (repeatable)")

	portfolioCmd.AddCommand(portfolioListCmd)
	portfolioCmd.AddCommand(portfolioMoveCmd)
	portfolioCmd.AddCommand(portfolioAddCmd)
}
