// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func cmdUsers(a *app) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "users",
		Short: "manage writer points",
	}
	cmd.AddCommand(cmdUsersPoints(a))
	cmd.AddCommand(cmdUsersSetPoints(a))
	return cmd
}

func cmdUsersPoints(a *app) *cobra.Command {
	var limit int
	var cmd = &cobra.Command{
		Use:          "points <handle>",
		Short:        "show a user's points and recent ledger entries",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			ctx := context.Background()
			pts, err := st.GetPoints(ctx, args[0], limit)
			if err != nil {
				return err
			}
			wc, err := st.DailyWorkCount(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d points (%d per approval), %d completed today", pts.Handle, pts.Points, pts.ApprovalPoints, wc.Current)
			if wc.Max > 0 {
				fmt.Printf(" of %d", wc.Max)
			}
			fmt.Println()
			if len(pts.Transactions) == 0 {
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tAMOUNT\tTYPE\tPOST\tDESCRIPTION")
			for _, t := range pts.Transactions {
				fmt.Fprintf(tw, "%s\t%+d\t%s\t%d\t%s\n", t.CreatedAt.Format("2006-01-02 15:04"), t.Amount, t.Type, t.BlogPostID, t.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of ledger entries to show")
	return cmd
}

func cmdUsersSetPoints(a *app) *cobra.Command {
	return &cobra.Command{
		Use:          "set-points <handle> <points>",
		Short:        "set the points a user earns per approved post",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("points: %w", err)
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.SetApprovalPoints(context.Background(), args[0], points); err != nil {
				return err
			}
			a.logger.Info("users: approval points set", zap.String("user", args[0]), zap.Int64("points", points))
			return nil
		},
	}
}
