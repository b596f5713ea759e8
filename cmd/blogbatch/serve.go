// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mdhender/blogbatch/metrics"
	"github.com/mdhender/blogbatch/model"
	"github.com/mdhender/blogbatch/pipelines/batch"
	"github.com/mdhender/blogbatch/pipelines/enrich"
	"github.com/mdhender/blogbatch/web/auth"
	"github.com/mdhender/blogbatch/web/handlers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func cmdServe(a *app) *cobra.Command {
	var host, port, usersFile, authAs string
	var timeout time.Duration
	addFlags := func(cmd *cobra.Command) error {
		cmd.Flags().StringVar(&host, "host", host, "HTTP listen host")
		cmd.Flags().StringVar(&port, "port", port, "HTTP listen port")
		cmd.Flags().StringVar(&usersFile, "users-file", usersFile, "load users from JSON file")
		cmd.Flags().DurationVar(&timeout, "timeout", 0, "auto-shutdown after duration (e.g., 5s, 1m)")
		cmd.Flags().StringVar(&authAs, "auth-as", "", "auto-authenticate as handle:role (e.g., admin:admin) for testing")
		return nil
	}
	var cmd = &cobra.Command{
		Use:          "serve",
		Short:        "serve the web interface",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("users-file") {
				cfg.Server.UsersFile = usersFile
			}
			if cmd.Flags().Changed("timeout") {
				cfg.Server.Timeout = timeout
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(a, authAs)
		},
	}
	if err := addFlags(cmd); err != nil {
		panic(err)
	}
	return cmd
}

func serve(a *app, authAs string) error {
	cfg := a.cfg
	st, err := a.openStore()
	if err != nil {
		return fmt.Errorf("failed to create SQLite store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	if cfg.Server.UsersFile != "" {
		hasher, err := a.hasher()
		if err != nil {
			return err
		}
		n, err := st.LoadUsersFromJSON(ctx, a.fs, cfg.Server.UsersFile, hasher)
		if err != nil {
			return fmt.Errorf("failed to load users: %w", err)
		}
		a.logger.Info("store: loaded users", zap.Int("users", n))
	}
	if cfg.Admin.User != "" {
		if err := st.UpsertUser(ctx, &model.User{
			Handle:       cfg.Admin.User,
			UserName:     cfg.Admin.User,
			PasswordHash: cfg.Admin.PasswordHash,
			Role:         model.RoleAdmin,
		}, true); err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}
	}

	a.metrics = metrics.New()
	runCtx, cancelRuns := context.WithCancel(ctx)
	defer cancelRuns()

	var h *handlers.Handlers
	p := a.newPipeline(st, batch.Hooks{
		OnReset: func() {
			h.ClearSheet()
			a.logger.Info("batch: reset")
		},
	})
	w, err := a.newWorker(st)
	if err != nil {
		return err
	}
	h = handlers.New(handlers.Options{
		Store:        st,
		Sessions:     auth.NewSessionStore(),
		Ingest:       a.newIngest(st),
		Pipeline:     p,
		Worker:       w,
		Scraper:      enrich.NewScraper(),
		Metrics:      a.metrics,
		Logger:       a.logger.Named("web"),
		BaseContext:  runCtx,
		ExportPrefix: cfg.Export.Prefix,
	})

	if authAs != "" {
		handle, role, ok := strings.Cut(authAs, ":")
		if !ok || handle == "" || (role != model.RoleAdmin && role != model.RoleWriter) {
			return fmt.Errorf("auth: invalid format %q (expected handle:%s or handle:%s)", authAs, model.RoleAdmin, model.RoleWriter)
		}
		h.SetAutoAuth(handle, role)
		a.logger.Warn("auth: auto-authenticating every request", zap.String("handle", handle), zap.String("role", role))
	}

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      h.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	if cfg.Server.Timeout > 0 {
		go func() {
			a.logger.Info("server: will auto-shutdown", zap.Duration("after", cfg.Server.Timeout))
			time.Sleep(cfg.Server.Timeout)
			a.logger.Info("server: timeout reached, initiating shutdown")
			shutdown <- os.Interrupt
		}()
	}

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if n := h.Sessions().Purge(); n > 0 {
					a.logger.Debug("auth: purged expired sessions", zap.Int("sessions", n))
				}
			}
		}
	}()

	go func() {
		a.logger.Info("server: listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("server", zap.Error(err))
			shutdown <- os.Interrupt
		}
	}()

	<-shutdown
	a.logger.Info("server: shutting down gracefully")

	p.Stop()
	p.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown error: %w", err)
	}

	a.logger.Info("server: stopped")
	return nil
}
