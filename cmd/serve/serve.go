// Package serve implements the serve command.
package serve

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/leafscan/internal/analysis"
	"github.com/tphakala/leafscan/internal/buildinfo"
	"github.com/tphakala/leafscan/internal/conf"
)

// Command creates the serve command running the HTTP API.
func Command(settings *conf.Settings, info *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  `Serve the detection API until interrupted. Detection events are published to MQTT when enabled.`,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := analysis.NewService(settings)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := svc.Close(); err == nil {
					err = cerr
				}
			}()
			return analysis.Serve(ctx, svc, info.GetVersion())
		},
	}

	cmd.Flags().String("port", "", "Port to listen on")
	cmd.Flags().String("uploads", "", "Directory for uploaded images")
	_ = viper.BindPFlag("webserver.port", cmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("webserver.uploaddir", cmd.Flags().Lookup("uploads"))

	return cmd
}
