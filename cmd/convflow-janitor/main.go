// Package main provides the janitor: the scheduled maintenance job that
// removes expired session states and reconciles orphaned cache entries.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/convflow/convflow/pkg/cmd"
	"github.com/convflow/convflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func main() {
	logger := log.WithModule("janitor")

	command := &cli.Command{
		Name:                  "convflow-janitor",
		Usage:                 "Run scheduled session state maintenance",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for persistence",
				Sources: cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "Redis address for the session state cache tier",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
			&cli.StringFlag{
				Name:    "cleanup-schedule",
				Usage:   "Cron expression for the maintenance run",
				Value:   "*/5 * * * *",
				Sources: cli.EnvVars("CLEANUP_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Convflow janitor")

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			states, err := cmd.NewStateStore(ctx, logger, command.String("redis-addr"), persistence)
			if err != nil {
				return err
			}

			janitor := NewJanitor(logger, states)

			if err := janitor.Start(ctx, command.String("cleanup-schedule")); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop

			janitor.Stop()

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
