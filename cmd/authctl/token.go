package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/event-admin/internal/auth"
	"github.com/spec-kit/event-admin/internal/domain"
)

var (
	issueKind    string
	issueSubject string
	issueRole    string
	inspectRaw   bool
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Sign an access and refresh token pair",
	Long:  "Sign a token pair for an actor without checking that the actor exists. Intended for local testing.",
	Args:  cobra.NoArgs,
	RunE:  runIssue,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <token>",
	Short: "Verify a token and print its claims",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	issueCmd.Flags().StringVar(&issueKind, "kind", string(domain.ActorKindStaff), "Actor kind: staff, minister or guest")
	issueCmd.Flags().StringVar(&issueSubject, "subject", "", "Actor id")
	issueCmd.Flags().StringVar(&issueRole, "role", "", "Staff role (ignored for ministers and guests)")
	_ = issueCmd.MarkFlagRequired("subject")

	inspectCmd.Flags().BoolVar(&inspectRaw, "unverified", false, "Decode without checking signature or expiry")

	rootCmd.AddCommand(issueCmd, inspectCmd)
}

func runIssue(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	kind := domain.ActorKind(issueKind)
	if !kind.Valid() {
		return fmt.Errorf("unknown actor kind %q", issueKind)
	}
	role := domain.Role(issueRole)
	if kind == domain.ActorKindStaff && !role.IsStaffRole() {
		return fmt.Errorf("staff tokens need --role, one of %v", domain.StaffRoles())
	}

	issuer := auth.NewIssuer(newSigner(cfg), cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	pair, err := issuer.IssuePair(issueSubject, kind, role)
	if err != nil {
		return fmt.Errorf("issue tokens: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "access_token:  %s\n", pair.AccessToken)
	fmt.Fprintf(out, "access_expires_at:  %s\n", pair.AccessExpiresAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "refresh_token: %s\n", pair.RefreshToken)
	fmt.Fprintf(out, "refresh_expires_at: %s\n", pair.RefreshExpiresAt.UTC().Format(time.RFC3339))
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	var (
		payload *auth.Payload
		err     error
	)
	if inspectRaw {
		payload, err = auth.Decode(args[0])
	} else {
		cfg, loadErr := loadConfig()
		if loadErr != nil {
			return loadErr
		}
		payload, err = newSigner(cfg).Verify(args[0])
	}
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:         %s\n", payload.ID)
	fmt.Fprintf(out, "kind:       %s\n", payload.Kind)
	fmt.Fprintf(out, "subject:    %s\n", payload.Subject)
	fmt.Fprintf(out, "type:       %s\n", payload.Type)
	if payload.Role != "" {
		fmt.Fprintf(out, "role:       %s\n", payload.Role)
	}
	fmt.Fprintf(out, "issued_at:  %s\n", payload.IssuedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "expires_at: %s\n", payload.ExpiresAt.UTC().Format(time.RFC3339))
	return nil
}
