package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oksasatya/campus-identity/internal/domain/entity"
)

func newSignupCmd(app func() *App) *cobra.Command {
	var f entity.ProfileFields
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account; academic emails are verified automatically",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			var err error
			if f.Email, err = p.valueOrPrompt(f.Email, "Email: "); err != nil {
				return err
			}
			password, err := p.Password("Password: ")
			if err != nil {
				return err
			}
			confirm, err := p.Password("Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return errors.New("passwords do not match")
			}

			s, err := app().Sessions.Signup(cmd.Context(), f, password)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Welcome, %s\n", describe(s.Identity))
			if !s.Identity.Verified {
				fmt.Fprintln(out, "Your email is not from a recognized academic domain. Run `campus verify <student-id-image>` to verify your student status.")
			}
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.Email, "email", "", "account email")
	fl.StringVar(&f.Name, "name", "", "display name")
	fl.StringVar(&f.Institution, "institution", "", "school or university")
	fl.StringVar(&f.FieldOfStudy, "field", "", "field of study")
	fl.IntVar(&f.Year, "year", 1, "year of study")
	fl.StringVar(&f.Bio, "bio", "", "short bio")
	fl.BoolVar(&f.Anonymous, "anonymous", false, "hide your profile from the directory")
	return cmd
}
