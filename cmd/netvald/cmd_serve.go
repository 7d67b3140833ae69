package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/netval-app/netval/pkg/jobs"
	"github.com/netval-app/netval/pkg/remediate"
	"github.com/netval-app/netval/pkg/server"
	"github.com/netval-app/netval/pkg/sshio"
	"github.com/netval-app/netval/pkg/store"
	"github.com/netval-app/netval/pkg/util"
	"github.com/netval-app/netval/pkg/vault"
)

const shutdownGrace = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the validation service (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	// Anything still marked running from a previous crash is stale.
	if err := st.FailRunningJobs(context.Background(), "server restarted"); err != nil {
		util.Warnf("failing stale jobs: %v", err)
	}

	v := vault.New()
	pool := sshio.NewPool(cfg.MaxSSHConnections, nil)
	ssh := sshio.NewService(st, v, pool)
	manager := jobs.NewManager(st, jobs.NewHub())
	remedy := remediate.NewEngine(st, ssh, time.Duration(cfg.RetentionHours)*time.Hour)

	srv := server.New(cfg, st, v, manager, ssh, remedy)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		util.Infof("received %s, shutting down", sig)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
