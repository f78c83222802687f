package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/freightdocs/internal/middleware"
	"github.com/dukerupert/freightdocs/internal/token"
)

func (a *app) tokenCmd() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint and inspect invite, unsubscribe and access tokens",
	}
	tokenCmd.AddCommand(a.tokenInviteCmd(), a.tokenVerifyCmd(), a.tokenUnsubscribeCmd(), a.tokenAccessCmd())
	return tokenCmd
}

func (a *app) tokenInviteCmd() *cobra.Command {
	var (
		teamID int64
		addr   string
		hours  int
	)
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Generate an invite token and join link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if teamID == 0 || addr == "" {
				return errors.New("--team and --email are required")
			}
			expiry := a.cfg.InviteExpiry()
			if hours > 0 {
				expiry = time.Duration(hours) * time.Hour
			}
			tok, err := token.New(a.cfg.Auth.UnsubscribeSecret).GenerateInviteToken(teamID, addr, expiry)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintln(cmd.OutOrStdout(), a.cfg.Server.BaseURL+"/teams/join?token="+url.QueryEscape(tok))
			return nil
		},
	}
	cmd.Flags().Int64Var(&teamID, "team", 0, "team id")
	cmd.Flags().StringVar(&addr, "email", "", "invitee email")
	cmd.Flags().IntVar(&hours, "hours", 0, "lifetime in hours (default: configured invite expiry)")
	return cmd
}

func (a *app) tokenVerifyCmd() *cobra.Command {
	var unsubscribe bool
	cmd := &cobra.Command{
		Use:   "verify <token>",
		Short: "Decode and validate an invite (or, with --unsubscribe, an unsubscribe) token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := token.New(a.cfg.Auth.UnsubscribeSecret)
			var v any
			valid := false
			if unsubscribe {
				res := svc.ValidateUnsubscribeToken(args[0])
				v, valid = res, res.Valid
			} else {
				res := svc.ValidateInviteToken(args[0])
				v, valid = res, res.Valid
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(v); err != nil {
				return err
			}
			if !valid {
				return errors.New("token is not valid")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&unsubscribe, "unsubscribe", false, "treat the token as an unsubscribe token")
	return cmd
}

func (a *app) tokenUnsubscribeCmd() *cobra.Command {
	var (
		userID   int64
		addr     string
		category string
	)
	cmd := &cobra.Command{
		Use:   "unsubscribe",
		Short: "Generate an unsubscribe link for a user or address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := token.New(a.cfg.Auth.UnsubscribeSecret).GenerateUnsubscribeToken(
				token.UnsubscribeSubject{UserID: userID, Email: addr}, category)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.cfg.Server.BaseURL+"/api/unsubscribe?token="+url.QueryEscape(tok))
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&addr, "email", "", "email address")
	cmd.Flags().StringVar(&category, "category", "", "email category (empty for all email)")
	cmd.MarkFlagsMutuallyExclusive("user", "email")
	cmd.MarkFlagsOneRequired("user", "email")
	return cmd
}

func (a *app) tokenAccessCmd() *cobra.Command {
	var (
		addr string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Sign an API access token with the local JWT secret (development only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Auth.JWTSecret == "" {
				return errors.New("FREIGHTDOCS_JWT_SECRET is not set")
			}
			if addr == "" {
				return errors.New("--email is required")
			}
			tok, err := middleware.GenerateToken(a.cfg.Auth.JWTSecret, "freightctl|"+addr, addr, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
