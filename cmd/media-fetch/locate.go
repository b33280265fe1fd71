package main

import (
	"errors"
	"fmt"

	"media-fetch/internal/ffmpeg"
	"media-fetch/internal/startup"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errFFmpegNotFound = errors.New("ffmpeg not found")

func newLocator(fs afero.Fs, ffmpegPath string) *ffmpeg.Locator {
	return ffmpeg.NewLocator(fs, ffmpeg.WithOverride(ffmpegPath))
}

func newLocateCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "locate",
		Short: "Print the ffmpeg executable the server would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			locator := newLocator(afero.NewOsFs(), v.GetString(startup.KeyFFmpegPath))
			out := cmd.OutOrStdout()

			if path, found := locator.Locate(); found {
				_, _ = fmt.Fprintln(out, path)
				return nil
			}

			_, _ = fmt.Fprintln(out, "Searched:")
			for _, candidate := range locator.Candidates() {
				_, _ = fmt.Fprintf(out, "  %s\n", candidate)
			}
			_, _ = fmt.Fprintf(out, "  %s on PATH\n", ffmpeg.Binary)
			return errFFmpegNotFound
		},
	}
}
