package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cocosip/go-dicom-jpeg/codec"
	"github.com/cocosip/go-dicom-jpeg/pipeline"
)

// NewDecodeRawCmd decodes fragments stored in plain files
func NewDecodeRawCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode-raw [flags] fragment...",
		Short: "decode JPEG fragments read from files",
		Long: "decode JPEG fragments read from files in the given order; all fragments form one frame " +
			"unless --frames is given, in which case frames start at fragments beginning with SOI",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			rows, _ := f.GetInt("rows")
			cols, _ := f.GetInt("cols")
			spp, _ := f.GetInt("spp")
			allocated, _ := f.GetInt("bits-allocated")
			stored, _ := f.GetInt("bits-stored")
			signed, _ := f.GetBool("signed")
			pi, _ := f.GetString("photometric")
			ts, _ := f.GetString("ts")
			frames, _ := f.GetInt("frames")
			bits, _ := f.GetInt("compressed-bits")
			out, _ := f.GetString("out")

			if stored == 0 {
				stored = allocated
			}
			desc := codec.FrameDescriptor{
				Rows:                      rows,
				Columns:                   cols,
				SamplesPerPixel:           spp,
				BitsAllocated:             allocated,
				BitsStored:                stored,
				HighBit:                   stored - 1,
				PhotometricInterpretation: codec.NormalizePhotometric(pi),
			}
			if signed {
				desc.PixelRepresentation = 1
			}

			var fragments [][]byte
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read fragment: %w", err)
				}
				fragments = append(fragments, data)
			}
			groups, err := pipeline.GroupFragments(fragments, nil, frames, true)
			if err != nil {
				return err
			}

			return decodeAndReport(ctx, cmd, &pipeline.Image{
				TransferSyntaxUID:  ts,
				Descriptor:         desc,
				Frames:             groups,
				CompressedBitDepth: bits,
			}, configFromFlags(cmd), out)
		},
	}
	f := cmd.Flags()
	f.Int("rows", 0, "rows of every frame")
	f.Int("cols", 0, "columns of every frame")
	f.Int("spp", 1, "samples per pixel (1 or 3)")
	f.Int("bits-allocated", 8, "bits allocated per sample (8 or 16)")
	f.Int("bits-stored", 0, "bits stored per sample, defaults to bits allocated")
	f.Bool("signed", false, "samples are two's complement")
	f.String("photometric", codec.PhotometricMonochrome2, "photometric interpretation")
	f.String("ts", codec.UIDJPEGBaseline, "transfer syntax UID or variant name")
	f.Int("frames", 1, "number of frames")
	f.Int("compressed-bits", 0, "sample precision of the JPEG stream, 0 reads it from the stream")
	f.StringP("out", "o", "", "file receiving the raw raster")
	_ = cmd.MarkFlagRequired("rows")
	_ = cmd.MarkFlagRequired("cols")
	addConfigFlags(cmd)
	return cmd
}
