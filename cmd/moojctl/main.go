package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/thanh913/MOOJ/internal/bootstrap"
	"github.com/thanh913/MOOJ/internal/config"
	"github.com/thanh913/MOOJ/internal/repository"
	"github.com/thanh913/MOOJ/internal/service"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "moojctl",
		Short:        "Operator tool for the MOOJ proof judge",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(seedCommand(), reapCommand(), evaluatorsCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, bootstrap.NewLogger(cfg, "moojctl"), nil
}

func seedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create or update problems from a YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read seed file: %w", err)
			}

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := bootstrap.OpenDatabase(cfg)
			if err != nil {
				return err
			}

			problems := service.NewProblemService(repository.NewProblemRepository(db), validator.New(validator.WithRequiredStructEnabled()), logger)
			affected, err := problems.SeedYAML(cmd.Context(), raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d problem(s) from %s\n", affected, file)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML seed file (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func reapCommand() *cobra.Command {
	var stuckAfter time.Duration

	cmd := &cobra.Command{
		Use:   "reap",
		Short: "Move submissions stuck in processing to evaluation_error",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if stuckAfter <= 0 {
				stuckAfter = cfg.WorkerStuckAfter
			}
			db, err := bootstrap.OpenDatabase(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			reaped, err := service.NewReaper(repository.NewSubmissionRepository(db), stuckAfter, logger).Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reaped %d submission(s) idle for more than %s\n", reaped, stuckAfter)
			return nil
		},
	}

	cmd.Flags().DurationVar(&stuckAfter, "stuck-after", 0, "idle time before a processing submission counts as stuck (defaults to worker.stuck_after)")
	return cmd
}

func evaluatorsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluators",
		Short: "Print the configured evaluators",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			router, err := bootstrap.Evaluators(cfg, logger)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(map[string]interface{}{
				"default":    router.DefaultName(),
				"evaluators": router.Infos(),
			})
		},
	}
}
