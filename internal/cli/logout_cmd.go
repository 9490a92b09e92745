package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogoutCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app().Sessions.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(app func() *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, ok := app().Sessions.Store().Identity()
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(out, "Not signed in")
				return nil
			}
			if asJSON {
				return writeJSON(out, u)
			}
			fmt.Fprintf(out, "%s <%s>\n", describe(u), u.Email)
			if u.Institution != "" {
				fmt.Fprintf(out, "%s, year %d\n", u.Institution, u.Year)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}
