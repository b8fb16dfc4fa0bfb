package main

import (
	"os/signal"
	"syscall"

	"tomobs/internal/metrics"
	"tomobs/internal/repository"
	"tomobs/internal/service"

	"github.com/spf13/cobra"
)

var updateStatusCmd = &cobra.Command{
	Use:   "updatestatus",
	Short: "Refresh the status of every open observation",
	Long: `Ask each enabled facility for the current status of its observations that
have not reached a terminal state, and store the changes.

One line is printed per changed or failed observation, followed by a summary.
Failures for single observations do not stop the run.`,
	Args: cobra.NoArgs,
	RunE: runUpdateStatus,
}

func runUpdateStatus(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, closeDB, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	metrics.Init()
	statusService := service.NewStatusService(registry, repository.NewObservationRepository(db))
	_, err = statusService.UpdateStatuses(ctx, cmd.OutOrStdout())
	return err
}
