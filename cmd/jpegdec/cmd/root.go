package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cocosip/go-dicom-jpeg/codec"
	"github.com/cocosip/go-dicom-jpeg/logging"
)

func NewRoot(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "jpegdec",
		Short:         "decode JPEG compressed DICOM pixel data",
		Long:          "decode baseline, extended and progressive JPEG pixel data of DICOM images into raw rasters",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logLevel, _ := cmd.Flags().GetString("log-level")
			logJSON, _ := cmd.Flags().GetBool("log-json")
			logFile, _ := cmd.Flags().GetString("log-file")

			var level slog.Level
			levelErr := level.UnmarshalText([]byte(strings.ToUpper(logLevel)))
			if levelErr != nil {
				level = slog.LevelInfo
			}
			var w io.Writer = cmd.ErrOrStderr()
			if logFile != "" {
				w = logging.RotatingFile(logFile, 50, 3, 28)
			}
			slog.SetDefault(logging.Logger(w, logJSON, level))
			if levelErr != nil {
				slog.WarnContext(ctx, "Invalid log level, defaulting to INFO", "level", logLevel, "error", levelErr)
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			printCommandTree(cmd.OutOrStdout(), cmd, 0)
		},
	}
	cmd.AddCommand(
		NewVersionCmd(ctx, gitsha),
		NewDecodeCmd(ctx),
		NewDecodeRawCmd(ctx),
		NewProbeCmd(ctx),
		NewVariantsCmd(ctx),
	)
	pf := cmd.PersistentFlags()
	pf.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	pf.Bool("log-json", false, "log as JSON instead of text")
	pf.String("log-file", "", "write logs to a rotating file instead of stderr")
	return cmd
}

func printCommandTree(w io.Writer, cmd *cobra.Command, indent int) {
	fmt.Fprintln(w, strings.Repeat("\t", indent), cmd.Use+":", cmd.Short)
	for _, subCmd := range cmd.Commands() {
		printCommandTree(w, subCmd, indent+1)
	}
}

func NewVersionCmd(ctx context.Context, gitsha string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "git sha for this build",
		Long:  "git sha for this build",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), gitsha)
		},
	}
	return cmd
}

// addConfigFlags registers the decoder options shared by the decode commands
func addConfigFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("partial", false, "zero-fill frames that fail to decode instead of aborting")
	f.Bool("planar", false, "write colour samples plane by plane")
	f.Bool("trust-declared", true, "apply the colour transform declared by the photometric interpretation")
	f.Bool("ignore-offset-table", false, "group fragments into frames without the basic offset table")
}

func configFromFlags(cmd *cobra.Command) *codec.Config {
	cfg := codec.DefaultConfig()
	cfg.AllowPartialImageOnFrameFailure, _ = cmd.Flags().GetBool("partial")
	cfg.PreferPlanarOutput, _ = cmd.Flags().GetBool("planar")
	cfg.TrustDeclaredColorTransform, _ = cmd.Flags().GetBool("trust-declared")
	cfg.IgnoreOffsetTable, _ = cmd.Flags().GetBool("ignore-offset-table")
	return cfg
}
