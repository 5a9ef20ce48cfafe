// Package labels implements the labels command.
package labels

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/leafscan/internal/classifier"
	"github.com/tphakala/leafscan/internal/conf"
)

// Command creates the labels command printing the classes the model reports.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "Print the model labels in index order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			labels, err := classifier.LoadLabels(settings.Classifier.LabelsPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, name := range labels {
				if _, err := fmt.Fprintf(out, "%d\t%s\t%s\n", i, name, classifier.Display(name)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
