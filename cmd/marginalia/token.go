package main

import (
	"fmt"

	"github.com/lalith-99/marginalia/internal/api"
	"github.com/lalith-99/marginalia/internal/auth"
	"github.com/lalith-99/marginalia/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTokenCmd(deps func() (*config.Config, *zap.Logger)) *cobra.Command {
	var (
		userID         string
		hashPassphrase string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token, or hash a passphrase for the relay's token endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := deps()
			out := cmd.OutOrStdout()

			if hashPassphrase != "" {
				hash, err := api.HashPassphrase(hashPassphrase)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, hash)
				return nil
			}

			if userID == "" {
				userID = cfg.UserID
			}
			token, err := auth.GenerateToken(userID, cfg.JWTSecret, api.TokenTTL)
			if err != nil {
				return fmt.Errorf("generate token: %w", err)
			}
			fmt.Fprintln(out, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user the token is issued to (defaults to USER_ID)")
	cmd.Flags().StringVar(&hashPassphrase, "hash-passphrase", "", "print the bcrypt hash of this passphrase and exit")
	return cmd
}
