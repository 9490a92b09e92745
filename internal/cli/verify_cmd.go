package cli

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/oksasatya/campus-identity/internal/application/verification"
)

func newVerifyCmd(app func() *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "verify <student-id-image>",
		Short: "Verify your student status with a photo of your student ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if _, ok := a.Sessions.Store().Identity(); !ok {
				return errors.New("not signed in, run `campus login` first")
			}

			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}
			contentType, err := detectContentType(path)
			if err != nil {
				return err
			}

			m := verification.NewMachine(verification.SizeClassifier{
				Threshold: a.Cfg.VerifySizeThreshold,
				Delay:     a.Cfg.VerifyDelay,
			}, verification.NewMemoryPreviewStore(), a.Logger)
			defer m.Remove(cmd.Context())

			err = m.Select(cmd.Context(), verification.FileInput{
				Name:        filepath.Base(path),
				ContentType: contentType,
				Size:        info.Size(),
				Content:     f,
			})
			out := cmd.OutOrStdout()
			if errors.Is(err, verification.ErrUnsupportedFileType) {
				fmt.Fprintln(out, "Please upload an image file")
				return err
			}
			if err != nil {
				return err
			}

			if !asJSON {
				fmt.Fprintln(out, "Verifying...")
			}
			res, err := m.Verify(cmd.Context())
			if err != nil && !errors.Is(err, verification.ErrVerificationRejected) {
				return err
			}
			if asJSON {
				return writeJSON(out, m.Snapshot())
			}
			if res.State != verification.StateVerified {
				fmt.Fprintln(out, res.Reason)
				return verification.ErrVerificationRejected
			}
			fmt.Fprintln(out, "Verified")
			fmt.Fprintf(out, "  Name:        %s\n", res.Details.Name)
			fmt.Fprintf(out, "  Institution: %s\n", res.Details.Institution)
			fmt.Fprintf(out, "  ID number:   %s\n", res.Details.DocumentNumber)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the verification status as JSON")
	return cmd
}

// detectContentType trusts the extension first and sniffs the file otherwise.
func detectContentType(path string) (string, error) {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct, nil
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}
	return mt.String(), nil
}
