package cli

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/oksasatya/campus-identity/internal/application/recovery"
)

const maxPasswordAttempts = 3

func newResetRequestCmd(app func() *App) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset-request",
		Short: "Email yourself a password reset link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			email, err := newPrompter(cmd).valueOrPrompt(email, "Email: ")
			if err != nil {
				return err
			}
			link, err := app().Gateway.RequestPasswordReset(cmd.Context(), email)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "If an account exists for that email, a reset link is on its way.")
			if link != "" {
				fmt.Fprintf(out, "Reset link: %s\n", link)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newResetPasswordCmd(app func() *App) *cobra.Command {
	var link string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password using the link from the reset email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			p := newPrompter(cmd)
			out := cmd.OutOrStdout()

			raw, err := p.valueOrPrompt(link, "Reset link: ")
			if err != nil {
				return err
			}
			u, err := url.Parse(raw)
			if err != nil {
				return errors.New(recovery.InvalidLinkMessage)
			}

			ctrl := recovery.NewController(a.Gateway, a.Gateway, a.Gateway, a.Logger)
			if ctrl.Start(cmd.Context(), u) != recovery.StateReady {
				return ctrl.Err()
			}

			for attempt := 1; ; attempt++ {
				password, err := p.Password("New password: ")
				if err != nil {
					return err
				}
				confirm, err := p.Password("Confirm new password: ")
				if err != nil {
					return err
				}
				err = ctrl.Submit(cmd.Context(), password, confirm)
				if err == nil {
					break
				}
				var policy *recovery.PasswordPolicyError
				var rejected *recovery.PasswordUpdateError
				if !errors.As(err, &policy) && !errors.As(err, &rejected) || attempt == maxPasswordAttempts {
					return err
				}
				fmt.Fprintln(out, err.Error())
			}

			// The provider revokes every session on a password change.
			a.Sessions.Logout(cmd.Context())
			fmt.Fprintln(out, ctrl.View().Message+" Sign in with `campus login`.")
			return nil
		},
	}
	cmd.Flags().StringVar(&link, "link", "", "reset link from the email")
	return cmd
}
