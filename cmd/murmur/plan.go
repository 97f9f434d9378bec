package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/murmur-ai/murmur/pkg/entitlements"
	"github.com/murmur-ai/murmur/pkg/models"
	"github.com/murmur-ai/murmur/pkg/tenantstore"
)

func newPlanCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "plan <tenant>",
		Short: "Show a tenant's plan and caps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			tenants, err := tenantstore.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = tenants.Close() }()

			tenantID := args[0]
			ent, err := tenants.Lookup(cmd.Context(), tenantID)
			if errors.Is(err, entitlements.ErrTenantNotFound) {
				ent = models.DefaultEntitlement(tenantID)
				fmt.Fprintf(cmd.OutOrStdout(), "tenant %s not registered, showing defaults\n", tenantID)
			} else if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tenant:       %s\n", ent.TenantID)
			fmt.Fprintf(out, "plan:         %s\n", ent.Plan)
			fmt.Fprintf(out, "concurrency:  %d\n", ent.Caps.Concurrency)
			fmt.Fprintf(out, "tokens in:    %d/month\n", ent.Caps.TokensMonthIn)
			fmt.Fprintf(out, "tokens out:   %d/month\n", ent.Caps.TokensMonthOut)
			fmt.Fprintf(out, "image gen:    %d/month\n", ent.Caps.ImageGen)
			fmt.Fprintf(out, "music gen:    %d/month\n", ent.Caps.MusicGen)
			fmt.Fprintf(out, "vision:       %d/month\n", ent.Caps.VisionDescribe)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "murmur.yaml", "path to config file")
	return cmd
}
