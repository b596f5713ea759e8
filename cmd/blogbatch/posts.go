// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/mdhender/blogbatch/model"
	"github.com/spf13/cobra"
)

func cmdPosts(a *app) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "posts",
		Short: "review generated posts",
	}
	cmd.AddCommand(cmdPostsList(a))
	cmd.AddCommand(cmdPostsReview(a, "approve"))
	cmd.AddCommand(cmdPostsReview(a, "reject"))
	cmd.AddCommand(cmdPostsActivity(a))
	return cmd
}

func cmdPostsList(a *app) *cobra.Command {
	var status string
	var asJSON bool
	var cmd = &cobra.Command{
		Use:          "list",
		Short:        "list posts, newest first",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter model.PostStatus
			if status != "" {
				ps, ok := model.ParsePostStatus(status)
				if !ok {
					return fmt.Errorf("unknown status %q", status)
				}
				filter = ps
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			posts, err := st.ListBlogPosts(context.Background(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(posts)
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tSTORE\tKEYWORD\tWRITER\tCREATED")
			for _, p := range posts {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Status, p.StoreName, p.MainKeyword, p.AssignedTo, p.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "only list posts with this status")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// cmdPostsReview builds the approve and reject commands; both act on a completed post.
func cmdPostsReview(a *app, action string) *cobra.Command {
	var note, admin string
	var cmd = &cobra.Command{
		Use:          action + " <post-id>",
		Short:        action + " a completed post",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("post id: %w", err)
			}
			if admin == "" {
				admin = a.cfg.Admin.User
			}
			if admin == "" {
				return fmt.Errorf("--as is required when ADMIN_USER is not set")
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var post *model.BlogPost
			if action == "approve" {
				post, err = st.ApprovePost(context.Background(), id, admin, note)
			} else {
				post, err = st.RejectPost(context.Background(), id, admin, note)
			}
			if err != nil {
				return err
			}
			fmt.Printf("post %d: %s\n", post.ID, post.Status)
			return nil
		},
	}
	if action == "approve" {
		cmd.Flags().StringVar(&note, "feedback", "", "feedback for the writer")
	} else {
		cmd.Flags().StringVar(&note, "reason", "", "reason for rejecting")
	}
	cmd.Flags().StringVar(&admin, "as", "", "admin handle recorded in the activity log")
	return cmd
}

func cmdPostsActivity(a *app) *cobra.Command {
	return &cobra.Command{
		Use:          "activity <post-id>",
		Short:        "show the status history of a post",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("post id: %w", err)
			}
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			logs, err := st.ListActivity(context.Background(), id)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tWHO\tACTION\tFROM\tTO\tNOTES")
			for _, l := range logs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", l.CreatedAt.Format("2006-01-02 15:04"), l.UserID, l.Action, l.StatusBefore, l.StatusAfter, l.Notes)
			}
			return tw.Flush()
		},
	}
}
