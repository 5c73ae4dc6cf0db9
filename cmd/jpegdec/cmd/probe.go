package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cocosip/go-dicom-jpeg/codec"
	"github.com/cocosip/go-dicom-jpeg/jpeg/engine"
)

type probeReport struct {
	File           string                 `json:"file"`
	Process        string                 `json:"process"`
	Precision      int                    `json:"precision"`
	Width          int                    `json:"width"`
	Height         int                    `json:"height"`
	Components     []engine.ComponentInfo `json:"components"`
	ColorTransform bool                   `json:"colorTransform"`
	Restart        int                    `json:"restartInterval,omitempty"`
}

// NewProbeCmd prints the frame header of JPEG streams
func NewProbeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe file...",
		Short: "print the frame header of JPEG streams",
		Long:  "print process, precision, geometry and colour transform of JPEG streams as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				hdr, err := engine.Probe(data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if err := enc.Encode(probeReport{
					File:           path,
					Process:        hdr.Process(),
					Precision:      hdr.Precision,
					Width:          hdr.Width,
					Height:         hdr.Height,
					Components:     hdr.Components,
					ColorTransform: hdr.ColorTransform(),
					Restart:        hdr.RestartInterval,
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}
	return cmd
}

// NewVariantsCmd lists the known coding variants
func NewVariantsCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variants",
		Short: "list the known JPEG transfer syntaxes",
		Long:  "list the known JPEG transfer syntaxes and whether this tool decodes them",
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "UID\tNAME\tPROCESS\tLOSSY\tMAX BITS\tDECODABLE")
			for _, v := range codec.List() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%d\t%t\n", v.UID, v.Name, v.Process, v.Lossy, v.MaxPrecision, v.Decodable())
			}
			return tw.Flush()
		},
	}
	return cmd
}
