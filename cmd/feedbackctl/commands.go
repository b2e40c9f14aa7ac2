package main

import (
	"fmt"
	"sort"

	"github.com/ShaharSGA/Project/internal/models"
	"github.com/spf13/cobra"
)

func ageCommand(ctx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "age",
		Short: "Move lab items past the aging threshold to skipped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lab := ctx.lab()
			n, err := lab.AutoAge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "aged %d record(s) older than %d days\n", n, lab.AgingDays())
			return nil
		},
	}
}

func aggregateCommand(ctx *cliContext) *cobra.Command {
	var clientID, agentType string
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Rebuild the learning corpus for one client and agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := ctx.learning().Aggregate(cmd.Context(), clientID, agentType)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d pattern(s) to %s\n", result.Patterns, result.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "client id")
	cmd.Flags().StringVar(&agentType, "agent", "", "agent type")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}

func statsCommand(ctx *cliContext) *cobra.Command {
	var clientID, agentType string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print feedback counts by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := ctx.store.Stats(cmd.Context(), clientID, agentType)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total: %d\n", stats.Total)

			statuses := make([]string, 0, len(stats.ByStatus))
			for s := range stats.ByStatus {
				statuses = append(statuses, string(s))
			}
			sort.Strings(statuses)
			for _, s := range statuses {
				fmt.Fprintf(out, "  %-20s %d\n", s, stats.ByStatus[models.Status(s)])
			}
			fmt.Fprintf(out, "avg rating: %.2f\navg confidence: %.2f\n", stats.AvgRating, stats.AvgConfidence)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "client id")
	cmd.Flags().StringVar(&agentType, "agent", "", "agent type, empty for all")
	_ = cmd.MarkFlagRequired("client")
	return cmd
}

func queueCommand(ctx *cliContext) *cobra.Command {
	var clientID, agentType string
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the refinement lab queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := ctx.lab().Queue(cmd.Context(), clientID, agentType)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if view.Current == nil {
				fmt.Fprintln(out, "lab queue is empty")
				return nil
			}
			fmt.Fprintf(out, "current: #%d %s rating=%d\n", view.Current.ID, view.Current.Category, view.Current.Rating)
			for _, item := range view.Backlog {
				fmt.Fprintf(out, "  backlog: #%d %s rating=%d\n", item.ID, item.Category, item.Rating)
			}
			fmt.Fprintf(out, "backlog: %d, aged this pass: %d\n", view.BacklogCount, view.AgedCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&clientID, "client", "", "client id")
	cmd.Flags().StringVar(&agentType, "agent", "", "agent type")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("agent")
	return cmd
}
