package main

import (
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/alumni-attendance/internal/config"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/database"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/repository"
	"github.com/Shivanand-hulikatti/alumni-attendance/internal/service"
	"github.com/spf13/cobra"
)

var errNeedsPostgres = errors.New("this command needs the postgres store")

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Store != config.StorePostgres {
			return errNeedsPostgres
		}
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		if err := database.Migrate(cmd.Context(), store.(*repository.PostgresStore).Pool()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("schema applied")
		return nil
	},
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize <event-id>",
	Short: "Run the post-event attendance sweep for one event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Store != config.StorePostgres {
			return errNeedsPostgres
		}
		store, closeStore, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer closeStore()

		publisher := newPublisher()
		defer publisher.Close()

		svc := service.NewAttendanceService(store, publisher, policy(), logger)
		summary, err := svc.Finalize(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), summary.Message)
		return nil
	},
}
