package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/xzytten/eventsy-chat-server/internal/app"
	"github.com/xzytten/eventsy-chat-server/internal/auth"
	"github.com/xzytten/eventsy-chat-server/internal/config"
	"github.com/xzytten/eventsy-chat-server/internal/log"
	"github.com/xzytten/eventsy-chat-server/internal/store"
)

func main() {
	// Optional .env for local development; real deployments use EVENTSY_* vars.
	_ = godotenv.Load()

	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "eventsy-chat-server",
		Short: "WebSocket support-chat relay for the Eventsy platform",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")

	root.AddCommand(seedUserCommand(&configPath))
	root.AddCommand(tokenCommand(&configPath))

	return root
}

func runServe(ctx context.Context, configPath string) error {
	bootLogger := log.New("info")

	cfg, path, err := config.Load(bootLogger, configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := log.New(cfg.LogLevel)
	logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting eventsy chat relay")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		return err
	}

	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// seedUserCommand creates a directory user. Account management belongs to
// the storefront backend; this exists for local setups and tests.
func seedUserCommand(configPath *string) *cobra.Command {
	var (
		email    string
		name     string
		password string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "seed-user",
		Short: "Create a user in the identity directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := log.New("info")
			cfg, _, err := config.Load(logger, *configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			userRole := store.Role(role)
			if userRole != store.RoleCustomer && userRole != store.RoleAdmin {
				return fmt.Errorf("role must be %q or %q", store.RoleCustomer, store.RoleAdmin)
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			st, err := app.OpenStore(ctx, &cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			name = truncateName(strings.TrimSpace(name), cfg.Relay.MaxUsernameLength)
			if err := st.CreateUser(ctx, &store.User{
				Email:        email,
				Name:         name,
				PasswordHash: hash,
				Role:         userRole,
			}); err != nil {
				return fmt.Errorf("create user: %w", err)
			}

			logger.Info().Str("email", email).Str("role", role).Msg("user created")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "user email (identity)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "plaintext password to hash")
	cmd.Flags().StringVar(&role, "role", string(store.RoleCustomer), "customer or admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// tokenCommand mints an authToken cookie value for a user, for smoke tests
// against a running relay.
func tokenCommand(configPath *string) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed authToken for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := config.Load(log.New("warn"), *configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.JWT.Secret == "" {
				return fmt.Errorf("jwt secret is not configured")
			}

			token, err := auth.GenerateToken(&auth.JWTConfig{
				Secret:   []byte(cfg.JWT.Secret),
				Issuer:   cfg.JWT.Issuer,
				Audience: cfg.JWT.Audience,
				TTL:      cfg.JWT.TTL,
			}, email)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "user email (identity)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func truncateName(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	return string(runes[:max])
}
