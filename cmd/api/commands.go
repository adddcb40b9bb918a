package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/persistence"
	"github.com/spec-kit/identity-service/internal/repository"
	"github.com/spec-kit/identity-service/internal/service"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			deps, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()
			return persistence.RunMigrations(ctx, deps.pg.Pool, deps.logger)
		},
	}
}

func newSweepTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-tokens",
		Short: "Delete expired tokens once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := commandContext(cmd)
			deps, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer deps.Close()

			tokens := service.NewTokenService(service.TokenDependencies{
				TokenRepo:  repository.NewTokenRepository(deps.pg.Pool),
				Signer:     auth.NewJWTSigner(deps.cfg.Auth.TokenSecret, domain.TokenIDLength),
				Dispatcher: events.NewInMemoryDispatcher(deps.logger),
				Logger:     deps.logger,
			})
			count, err := tokens.DeleteAllExpiredTokens(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired tokens\n", count)
			return nil
		},
	}
}

func newSystemTokenCmd() *cobra.Command {
	var name, version, instanceID string
	cmd := &cobra.Command{
		Use:   "system-token",
		Short: "Print a credential for a peer service's X-System-Authorization header",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfigAndLogger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if version == "" {
				version = cfg.App.Version
			}
			if instanceID == "" {
				instanceID = cfg.App.InstanceID
			}
			token, err := auth.NewSystemIdentity(cfg.Auth.SystemSecret).Sign(name, version, instanceID)
			if err != nil {
				return err
			}
			logger.Info("system token issued", zap.String("name", name), zap.String("instance", instanceID))
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "peer service name")
	cmd.Flags().StringVar(&version, "version", "", "peer service version (defaults to APP_VERSION)")
	cmd.Flags().StringVar(&instanceID, "instance", "", "peer instance id (defaults to APP_INSTANCE_ID)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
