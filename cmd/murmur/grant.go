package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/murmur-ai/murmur/pkg/entitlements"
	"github.com/murmur-ai/murmur/pkg/models"
	"github.com/murmur-ai/murmur/pkg/store"
	"github.com/murmur-ai/murmur/pkg/tenantstore"
)

func newGrantCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "grant <tenant> <plan>",
		Short: "Assign a plan to a tenant and broadcast the change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, planArg := args[0], args[1]
			plan := models.ParsePlan(planArg)
			if string(plan) != planArg {
				return fmt.Errorf("unknown plan %q (want basic, premium or pro)", planArg)
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			tenants, err := tenantstore.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = tenants.Close() }()

			ent := models.Entitlement{
				TenantID: tenantID,
				Plan:     plan,
				Caps:     models.DefaultCaps(plan),
			}
			if err := tenants.Upsert(cmd.Context(), ent); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tenant %s granted plan %s\n", tenantID, plan)

			// Best effort: running caches refetch on their next TTL
			// expiry even if the broadcast never lands.
			if err := publishChange(cmd.Context(), cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, tenantID); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: invalidation broadcast failed: %v\n", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "murmur.yaml", "path to config file")
	return cmd
}

func publishChange(ctx context.Context, addr, password string, db int, tenantID string) error {
	rdb, err := store.NewRedis(ctx, addr, password, db)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()
	return entitlements.PublishChange(ctx, rdb, tenantID)
}
