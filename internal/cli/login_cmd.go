package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oksasatya/campus-identity/internal/domain/entity"
)

func newLoginCmd(app func() *App) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			email, err := p.valueOrPrompt(email, "Email: ")
			if err != nil {
				return err
			}
			password, err := p.Password("Password: ")
			if err != nil {
				return err
			}
			s, err := app().Sessions.Login(cmd.Context(), email, password)
			if errors.Is(err, entity.ErrInvalidCredentials) {
				return errors.New("invalid email or password")
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", describe(s.Identity))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func describe(u *entity.Identity) string {
	name := u.Name
	if name == "" {
		name = u.Email
	}
	if u.Verified {
		return name + " (verified student)"
	}
	return name
}
