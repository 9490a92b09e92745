package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/oksasatya/campus-identity/config"
)

// NewRootCmd builds the campus command tree.
func NewRootCmd(cfg *config.Config, logger *logrus.Logger) *cobra.Command {
	var (
		app     *App
		verbose bool
	)
	getApp := func() *App { return app }

	root := &cobra.Command{
		Use:           "campus",
		Short:         "Student identity client: sign in, recover your password, verify your student ID",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logger.SetLevel(logrus.DebugLevel)
			}
			a, err := NewApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			app = a
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				app.Close()
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
	root.PersistentFlags().StringVar(&cfg.APIBaseURL, "api", cfg.APIBaseURL, "identity API base URL")

	root.AddCommand(
		newLoginCmd(getApp),
		newSignupCmd(getApp),
		newLogoutCmd(getApp),
		newWhoamiCmd(getApp),
		newResetRequestCmd(getApp),
		newResetPasswordCmd(getApp),
		newVerifyCmd(getApp),
	)
	return root
}
