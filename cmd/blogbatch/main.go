// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/mdhender/blogbatch"
	"github.com/mdhender/blogbatch/config"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	a := &app{fs: afero.NewOsFs()}
	var configFile, dotenvFile string
	addFlags := func(cmd *cobra.Command) error {
		cmd.PersistentFlags().StringVarP(&configFile, "config-file", "c", configFile, "load configuration from YAML file")
		cmd.PersistentFlags().StringVar(&dotenvFile, "env-file", ".env", "load environment variables from file when it exists")
		cmd.PersistentFlags().Bool("debug", false, "log debugging information")
		cmd.PersistentFlags().Bool("log-json", false, "log in JSON")
		cmd.PersistentFlags().Bool("log-with-timestamp", false, "log with timestamp")
		cmd.PersistentFlags().Bool("quiet", false, "log less information")
		cmd.PersistentFlags().Bool("show-version", false, "show version")
		cmd.PersistentFlags().Bool("verbose", false, "log more information")
		return nil
	}
	var cmdRoot = &cobra.Command{
		Use:   "blogbatch",
		Short: "Blog post batch generator",
		Long:  `Generate blog posts for a spreadsheet of stores, review them, and export them`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			logJSON, _ := cmd.Flags().GetBool("log-json")
			quiet, _ := cmd.Flags().GetBool("quiet")
			verbose, _ := cmd.Flags().GetBool("verbose")
			withTimestamp, _ := cmd.Flags().GetBool("log-with-timestamp")
			logger, err := newLogger(debug, quiet, verbose, logJSON, withTimestamp)
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)
			a.logger = logger

			if showVersion, _ := cmd.Flags().GetBool("show-version"); showVersion {
				fmt.Printf("blogbatch: version %q\n", blogbatch.Version().Core())
			}

			a.cfg, err = config.Load(a.fs, configFile, dotenvFile)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				a.logger.Sync()
			}
		},
	}
	cmdRoot.AddCommand(cmdRun(a))
	cmdRoot.AddCommand(cmdServe(a))
	cmdRoot.AddCommand(cmdInitDB(a))
	cmdRoot.AddCommand(cmdCompactDB(a))
	cmdRoot.AddCommand(cmdPosts(a))
	cmdRoot.AddCommand(cmdUsers(a))
	cmdRoot.AddCommand(cmdVersion())
	if err := addFlags(cmdRoot); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := cmdRoot.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger. Quiet wins over verbose; debug wins over both.
func newLogger(debug, quiet, verbose, asJSON, withTimestamp bool) (*zap.Logger, error) {
	var cfg zap.Config
	if asJSON {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		if !withTimestamp {
			cfg.EncoderConfig.TimeKey = ""
		}
	}
	level := zapcore.InfoLevel
	switch {
	case debug:
		level = zapcore.DebugLevel
	case quiet:
		level = zapcore.WarnLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.DisableCaller = !(debug || verbose) || quiet
	cfg.DisableStacktrace = !debug
	return cfg.Build()
}

func cmdVersion() *cobra.Command {
	showBuildInfo := false
	addFlags := func(cmd *cobra.Command) error {
		cmd.Flags().BoolVar(&showBuildInfo, "build-info", showBuildInfo, "show build information")
		return nil
	}
	var cmd = &cobra.Command{
		Use:   "version",
		Short: "display the application's version number",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showBuildInfo {
				fmt.Println(blogbatch.Version().String())
				return nil
			}
			fmt.Println(blogbatch.Version().Core())
			return nil
		},
	}
	if err := addFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}
