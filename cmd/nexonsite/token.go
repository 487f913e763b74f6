package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nexonsite/internal/auth"
	"nexonsite/pkg/domain"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin bearer token signed with NEXONSITE_AUTH_SECRET",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Auth.Secret == "" {
			return errors.New("auth secret not configured (set NEXONSITE_AUTH_SECRET or auth.secret)")
		}
		ttl := tokenTTL
		if ttl == 0 {
			ttl = cfg.Auth.TokenTTL
		}
		token, err := auth.NewSigner(cfg.Auth.Secret).Mint(tokenSubject, domain.RoleAdmin, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin", "Token subject recorded in audit logs")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default auth.token_ttl)")
}
