package main

import (
	"fmt"
	"os"

	"media-fetch/internal/startup"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd(startup.NewViper()).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Flags are bound over the environment
// values already held by v.
func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "media-fetch",
		Short: "HTTP API for listing and downloading video formats through yt-dlp",
		Long: "media-fetch lists the downloadable formats of a video URL and serves\n" +
			"a merged file in the chosen format. Extraction is delegated to yt-dlp,\n" +
			"merging to ffmpeg.",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return serve(v)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("port", "5000", "Port for the API server (PORT)")
	flags.String("metrics-port", "9090", "Port for the metrics server (METRICS_PORT)")
	flags.String("staging-dir", "", "Directory downloads are staged in, a temporary one if empty (STAGING_DIR)")
	lo.Must0(v.BindPFlag(startup.KeyPort, flags.Lookup("port")))
	lo.Must0(v.BindPFlag(startup.KeyMetricsPort, flags.Lookup("metrics-port")))
	lo.Must0(v.BindPFlag(startup.KeyStagingDir, flags.Lookup("staging-dir")))

	rootCmd.AddCommand(
		newServeCmd(v),
		newVersionCmd(),
		newLocateCmd(v),
	)

	return rootCmd
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API (default command)",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return serve(v)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := startup.GetBuildInfo()
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "media-fetch %s\n", info.Version)
			_, _ = fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
			_, _ = fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
			_, _ = fmt.Fprintf(out, "  go:         %s\n", info.GoVersion)
			_, _ = fmt.Fprintf(out, "  platform:   %s/%s\n", info.OS, info.Arch)
		},
	}
}
