// Package detect implements the detect command.
package detect

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tphakala/leafscan/internal/analysis"
	"github.com/tphakala/leafscan/internal/conf"
)

// Command creates the detect command for classifying a single leaf photo.
func Command(settings *conf.Settings) *cobra.Command {
	var opts analysis.FileOptions

	cmd := &cobra.Command{
		Use:   "detect [image]",
		Short: "Detect disease on a coffee leaf photo",
		Long: `Classify a coffee leaf photo, print the diagnosis and remedy, and record it
in the detection history when --user is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			svc, err := analysis.NewService(settings)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := svc.Close(); err == nil {
					err = cerr
				}
			}()
			return analysis.FileDetection(cmd.Context(), svc, args[0], opts, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&opts.User, "user", "u", "", "User email the detection is recorded for")
	cmd.Flags().StringVarP(&opts.Language, "language", "l", "", "Preferred language for remedies, e.g. Swahili or sw")
	cmd.Flags().BoolVarP(&opts.Translate, "translate", "t", false, "Print the remedy in the preferred language")
	cmd.Flags().BoolVar(&opts.Analyze, "analyze", false, "Print brightness and contrast analysis")
	cmd.Flags().StringVarP(&opts.ReportPath, "report", "r", "", "Write a text report to this path")
	cmd.Flags().StringArrayVarP(&opts.Questions, "ask", "a", nil, "Ask the assistant a question, may be repeated")

	return cmd
}
