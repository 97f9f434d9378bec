package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/murmur-ai/murmur/pkg/bot"
	"github.com/murmur-ai/murmur/pkg/config"
	"github.com/murmur-ai/murmur/pkg/delivery"
	"github.com/murmur-ai/murmur/pkg/entitlements"
	"github.com/murmur-ai/murmur/pkg/llm"
	"github.com/murmur-ai/murmur/pkg/slots"
	"github.com/murmur-ai/murmur/pkg/store"
	"github.com/murmur-ai/murmur/pkg/tenantstore"
	"github.com/murmur-ai/murmur/pkg/usage"
)

func newBotCmd() *cobra.Command {
	var configPath, tenantID, destID string

	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the bot event driver, reading prompts from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rdb, err := store.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				return err
			}
			defer func() { _ = rdb.Close() }()

			tenants, err := tenantstore.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = tenants.Close() }()

			ledger, err := usage.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() { _ = ledger.Close() }()

			cache := entitlements.New(tenants, rdb, rdb, cfg.Entitlements.CacheTTL, logger)
			go func() {
				if err := cache.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("invalidation subscription ended", zap.Error(err))
				}
			}()

			sender := &consoleSender{out: cmd.OutOrStdout()}
			pacer := delivery.NewPacer(cfg.Delivery.BucketCapacity, cfg.Delivery.RefillPerSec)
			queue := delivery.NewQueue(sender, pacer,
				cfg.Delivery.SendSpacing, cfg.Delivery.BackoffBase, cfg.Delivery.BackoffCeiling, logger)

			driver := bot.New(
				cache,
				slots.New(cache, rdb, cfg.Slots.LeaseTTL),
				queue,
				sender,
				llm.NewClient(cfg.LLM.URL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens),
				ledger,
				bot.Config{
					ModerationLevel: cfg.Safety.ModerationLevel,
					MaxChunkLen:     cfg.Safety.MaxChunkLen,
					TypingInterval:  cfg.Delivery.TypingInterval,
					EditInterval:    cfg.Delivery.EditInterval,
				},
				logger,
			)

			logger.Info("bot ready",
				zap.String("tenant", tenantID), zap.String("dest", destID))

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				prompt := strings.TrimSpace(scanner.Text())
				if prompt == "" {
					continue
				}
				ev := bot.Event{TenantID: tenantID, DestID: destID, Prompt: prompt}
				if err := driver.HandleMessage(ctx, ev); err != nil {
					logger.Error("handle message", zap.Error(err))
				}
				if ctx.Err() != nil {
					break
				}
			}

			queue.Wait()
			return scanner.Err()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "murmur.yaml", "path to config file")
	cmd.Flags().StringVar(&tenantID, "tenant", "local", "tenant id for stdin prompts")
	cmd.Flags().StringVar(&destID, "dest", "console", "destination id for replies")
	return cmd
}

// loadConfig reads the config file, falling back to defaults when the
// file does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

// consoleSender is a stand-in chat-platform client that writes
// messages to the terminal. The real platform client implements the
// same delivery.Sender surface.
type consoleSender struct {
	mu     sync.Mutex
	out    io.Writer
	nextID int
}

func (c *consoleSender) Send(ctx context.Context, destID, content string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	handle := fmt.Sprintf("%s#%d", destID, c.nextID)
	fmt.Fprintf(c.out, "[%s] %s\n", handle, content)
	return handle, nil
}

func (c *consoleSender) Edit(ctx context.Context, destID, handle, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "[%s edit] %s\n", handle, content)
	return nil
}

func (c *consoleSender) StartTyping(ctx context.Context, destID string) error {
	return nil
}
