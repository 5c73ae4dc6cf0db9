package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/cocosip/go-dicom/pkg/dicom/dataset"
	"github.com/cocosip/go-dicom/pkg/dicom/element"
	"github.com/cocosip/go-dicom/pkg/dicom/parser"
	"github.com/cocosip/go-dicom/pkg/dicom/tag"
	"github.com/spf13/cobra"

	"github.com/cocosip/go-dicom-jpeg/codec"
	"github.com/cocosip/go-dicom-jpeg/pipeline"
)

// Report summarises a decode call without the raster
type Report struct {
	CallID            string                  `json:"callId"`
	TransferSyntaxUID string                  `json:"transferSyntaxUid"`
	RasterBytes       int                     `json:"rasterBytes"`
	Frames            []codec.FrameDescriptor `json:"frames"`
	FrameValid        []bool                  `json:"frameValid"`
	Scans             []int                   `json:"scans"`
	Deviations        []string                `json:"deviations,omitempty"`
}

func newReport(uid string, res *pipeline.Result) Report {
	r := Report{
		CallID:            res.CallID,
		TransferSyntaxUID: uid,
		RasterBytes:       len(res.Raster),
		Frames:            res.Frames,
		FrameValid:        res.FrameValid,
		Scans:             res.Scans,
	}
	for _, d := range res.Deviations {
		r.Deviations = append(r.Deviations, d.String())
	}
	return r
}

// NewDecodeCmd decodes the pixel data of a DICOM file
func NewDecodeCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "decode the JPEG pixel data of a DICOM file",
		Long:  "decode the JPEG pixel data of a DICOM file into a raw raster and print a JSON report",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")

			res, err := parser.ParseFile(in,
				parser.WithReadOption(parser.ReadAll),
				parser.WithLargeObjectSize(1024*1024*1024),
			)
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", in, err)
			}
			ds := res.Dataset
			uid := res.TransferSyntax.UID().UID()
			if !res.TransferSyntax.IsEncapsulated() {
				return fmt.Errorf("%s: transfer syntax %s is not encapsulated", in, uid)
			}

			desc := codec.FrameDescriptor{
				Rows:                uint16Attr(ds, tag.Rows, 0),
				Columns:             uint16Attr(ds, tag.Columns, 0),
				SamplesPerPixel:     uint16Attr(ds, tag.SamplesPerPixel, 1),
				BitsAllocated:       uint16Attr(ds, tag.BitsAllocated, 8),
				BitsStored:          uint16Attr(ds, tag.BitsStored, 8),
				HighBit:             uint16Attr(ds, tag.HighBit, 7),
				PixelRepresentation: uint16Attr(ds, tag.PixelRepresentation, 0),
				PlanarConfiguration: uint16Attr(ds, tag.PlanarConfiguration, 0),
			}
			if pi, ok := ds.GetString(tag.PhotometricInterpretation); ok {
				desc.PhotometricInterpretation = codec.NormalizePhotometric(pi)
			}
			frames := 1
			if s, ok := ds.GetString(tag.NumberOfFrames); ok {
				if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n > 0 {
					frames = n
				}
			}

			pd, ok := ds.Get(tag.PixelData)
			if !ok {
				return fmt.Errorf("%s: no pixel data", in)
			}
			var seq *element.FragmentSequence
			switch v := pd.(type) {
			case *element.OtherByteFragment:
				seq = v.FragmentSequence
			case *element.OtherWordFragment:
				seq = v.FragmentSequence
			default:
				return fmt.Errorf("%s: unexpected pixel data type %T", in, pd)
			}
			fragments := make([][]byte, 0, seq.FragmentCount())
			for _, f := range seq.Fragments() {
				fragments = append(fragments, f.Data())
			}
			offsets := seq.OffsetTable()

			cfg := configFromFlags(cmd)
			groups, err := pipeline.GroupFragments(fragments, offsets, frames, cfg.IgnoreOffsetTable)
			if err != nil {
				return err
			}
			slog.DebugContext(ctx, "pixel data", slog.String("file", in), slog.Int("fragments", len(fragments)), slog.Int("offsets", len(offsets)), slog.Int("frames", frames))

			return decodeAndReport(ctx, cmd, &pipeline.Image{
				TransferSyntaxUID: uid,
				Descriptor:        desc,
				Frames:            groups,
			}, cfg, out)
		},
	}
	f := cmd.Flags()
	f.StringP("in", "i", "", "DICOM file to decode")
	f.StringP("out", "o", "", "file receiving the raw raster")
	_ = cmd.MarkFlagRequired("in")
	addConfigFlags(cmd)
	return cmd
}

// uint16Attr reads the first value of a US attribute, def when absent
func uint16Attr(ds *dataset.Dataset, t *tag.Tag, def int) int {
	v, err := ds.GetUInt16(t, 0)
	if err != nil {
		return def
	}
	return int(v)
}

func decodeAndReport(ctx context.Context, cmd *cobra.Command, img *pipeline.Image, cfg *codec.Config, out string) error {
	res, err := pipeline.Decode(ctx, img, cfg)
	if err != nil {
		return err
	}
	if out != "" {
		if err := os.WriteFile(out, res.Raster, 0o644); err != nil {
			return fmt.Errorf("failed to write raster: %w", err)
		}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(newReport(img.TransferSyntaxUID, res))
}
