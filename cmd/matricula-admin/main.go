package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/matricula-api/internal/models"
	"github.com/noah-isme/matricula-api/internal/repository"
	"github.com/noah-isme/matricula-api/internal/service"
	"github.com/noah-isme/matricula-api/migrations"
	"github.com/noah-isme/matricula-api/pkg/config"
	"github.com/noah-isme/matricula-api/pkg/database"
	"github.com/noah-isme/matricula-api/pkg/logger"
)

// systemActor is the identity recorded for operator commands.
var systemActor = models.Actor{ID: "system", Role: models.RoleAdmin}

type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
}

var current env

var rootCmd = &cobra.Command{
	Use:   "matricula-admin",
	Short: "Operator tasks for the enrollment database",
	Long: `matricula-admin runs maintenance tasks against the enrollment database.

Examples:
  matricula-admin migrate
  matricula-admin period activate <period-id>
  matricula-admin section capacity <section-id>
  matricula-admin enrollment history <enrollment-id>`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logr, err := logger.New(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		current = env{cfg: cfg, logger: logr, db: db}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if current.db != nil {
			_ = current.db.Close()
		}
		if current.logger != nil {
			_ = current.logger.Sync()
		}
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		applied, err := database.ApplyMigrations(cmd.Context(), current.db, migrations.FS)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		}
		for _, name := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
		}
		return nil
	},
}

var periodCmd = &cobra.Command{
	Use:   "period",
	Short: "Manage academic periods",
}

var periodActivateCmd = &cobra.Command{
	Use:   "activate <period-id>",
	Short: "Mark a period as the current one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		periods := service.NewPeriodService(repository.NewPeriodRepository(current.db), validator.New(), current.logger)
		period, err := periods.SetCurrent(cmd.Context(), systemActor, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), period)
	},
}

var sectionCmd = &cobra.Command{
	Use:   "section",
	Short: "Inspect sections",
}

var sectionCapacityCmd = &cobra.Command{
	Use:   "capacity <section-id>",
	Short: "Show seat usage of a section",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sections := service.NewSectionService(
			repository.NewSectionRepository(current.db),
			repository.NewPeriodRepository(current.db),
			repository.NewGradeLevelRepository(current.db),
			validator.New(),
			current.logger,
		)
		capacity, err := sections.Capacity(cmd.Context(), systemActor, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), capacity)
	},
}

var enrollmentCmd = &cobra.Command{
	Use:   "enrollment",
	Short: "Inspect enrollments",
}

var enrollmentHistoryCmd = &cobra.Command{
	Use:   "history <enrollment-id>",
	Short: "Print the transition history and check it replays to the stored status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := repository.NewEnrollmentRepository(current.db)
		enrollment, err := repo.FindByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		entries, err := repo.ListHistory(cmd.Context(), enrollment.ID, false)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n", enrollment.Code, enrollment.Status)
		for _, entry := range entries {
			fmt.Fprintf(out, "  %s  %-12s -> %-12s %s\n", entry.CreatedAt.Format("2006-01-02 15:04:05"), entry.FromStatus, entry.ToStatus, entry.Comment)
		}
		path, err := service.ReplayHistory(entries)
		if err != nil {
			return fmt.Errorf("history is inconsistent: %w", err)
		}
		if last := path[len(path)-1]; last != enrollment.Status {
			return fmt.Errorf("history ends in %s but enrollment is %s", last, enrollment.Status)
		}
		fmt.Fprintln(out, "history consistent")
		return nil
	},
}

func init() {
	periodCmd.AddCommand(periodActivateCmd)
	sectionCmd.AddCommand(sectionCapacityCmd)
	enrollmentCmd.AddCommand(enrollmentHistoryCmd)

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(periodCmd)
	rootCmd.AddCommand(sectionCmd)
	rootCmd.AddCommand(enrollmentCmd)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
