package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"permitbot/internal/app"
	"permitbot/internal/authz"
	"permitbot/internal/config"
	"permitbot/internal/middleware"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "permitbot",
	Short: "Telegram bot that issues temporary circulation permits",
	Long: `permitbot walks a requester through the permit form over Telegram,
issues a folio with a PDF, and keeps it pending until the payment proof
arrives or an operator confirms it. Unpaid folios expire after the
payment window.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the yaml config")
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(hashPasswordCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and admin HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return app.Run(cfg)
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		user string
		role int
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API token signed with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !authz.Valid(role) {
				return fmt.Errorf("unknown role %d", role)
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Admin.JWTSecret == "" {
				return fmt.Errorf("admin.jwt_secret is not set")
			}
			if ttl <= 0 {
				ttl = cfg.Admin.TokenTTL
			}
			token, err := middleware.IssueToken([]byte(cfg.Admin.JWTSecret), user, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "operator username")
	cmd.Flags().IntVar(&role, "role", authz.RoleOperator, "role id (10 viewer, 20 operator, 50 admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to admin.token_ttl)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for admin.users[].password_hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pw string
			if len(args) == 1 {
				pw = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				pw = strings.TrimRight(line, "\r\n")
			}
			if pw == "" {
				return fmt.Errorf("empty password")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
}
