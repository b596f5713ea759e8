// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package main

import (
	"context"
	"sort"

	store "github.com/mdhender/blogbatch/stores/sqlite"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func cmdInitDB(a *app) *cobra.Command {
	var usersFile string
	var cmd = &cobra.Command{
		Use:          "init-db <path>",
		Short:        "create a new database file",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.InitDatabase(args[0]); err != nil {
				return err
			}
			a.logger.Info("init-db: created", zap.String("path", args[0]))
			if usersFile == "" {
				return nil
			}
			st, err := store.NewSQLiteStoreWithConfig(store.StoreConfig{Path: args[0]})
			if err != nil {
				return err
			}
			defer st.Close()
			hasher, err := a.hasher()
			if err != nil {
				return err
			}
			n, err := st.LoadUsersFromJSON(context.Background(), a.fs, usersFile, hasher)
			if err != nil {
				return err
			}
			a.logger.Info("init-db: loaded users", zap.Int("users", n))
			return nil
		},
	}
	cmd.Flags().StringVar(&usersFile, "users-file", "", "load users from JSON file")
	return cmd
}

func cmdCompactDB(a *app) *cobra.Command {
	return &cobra.Command{
		Use:          "compact-db <path>",
		Short:        "checkpoint and vacuum a database file",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.CompactDatabase(args[0]); err != nil {
				return err
			}
			st, err := store.NewSQLiteStoreWithConfig(store.StoreConfig{Path: args[0]})
			if err != nil {
				return err
			}
			defer st.Close()
			stats, err := st.TableStats(context.Background())
			if err != nil {
				return err
			}
			tables := make([]string, 0, len(stats))
			for table := range stats {
				tables = append(tables, table)
			}
			sort.Strings(tables)
			for _, table := range tables {
				a.logger.Info("compact-db", zap.String("table", table), zap.Int64("rows", stats[table]))
			}
			return nil
		},
	}
}
