package pipeline

import (
	"context"
	"fmt"

	dcodec "github.com/cocosip/go-dicom/pkg/imaging/codec"
	"github.com/cocosip/go-dicom/pkg/imaging/imagetypes"

	"github.com/cocosip/go-dicom-jpeg/codec"
)

// Parameter names understood by ConfigFromParameters
const (
	ParamTrustDeclaredColorTransform     = "trustDeclaredColorTransform"
	ParamAllowPartialImageOnFrameFailure = "allowPartialImageOnFrameFailure"
	ParamPreferPlanarOutput              = "preferPlanarOutput"
	ParamIgnoreOffsetTable               = "ignoreOffsetTable"
)

// DescriptorFromFrameInfo converts go-dicom frame metadata
func DescriptorFromFrameInfo(fi *imagetypes.FrameInfo) codec.FrameDescriptor {
	return codec.FrameDescriptor{
		Rows:                      int(fi.Height),
		Columns:                   int(fi.Width),
		SamplesPerPixel:           int(fi.SamplesPerPixel),
		BitsAllocated:             int(fi.BitsAllocated),
		BitsStored:                int(fi.BitsStored),
		HighBit:                   int(fi.HighBit),
		PixelRepresentation:       int(fi.PixelRepresentation),
		PlanarConfiguration:       int(fi.PlanarConfiguration),
		PhotometricInterpretation: fi.PhotometricInterpretation,
	}
}

// ApplyDescriptor writes a reconciled description back into go-dicom
// frame metadata
func ApplyDescriptor(fi *imagetypes.FrameInfo, d codec.FrameDescriptor) {
	fi.Height = uint16(d.Rows)
	fi.Width = uint16(d.Columns)
	fi.SamplesPerPixel = uint16(d.SamplesPerPixel)
	fi.BitsAllocated = uint16(d.BitsAllocated)
	fi.BitsStored = uint16(d.BitsStored)
	fi.HighBit = uint16(d.HighBit)
	fi.PixelRepresentation = uint16(d.PixelRepresentation)
	fi.PlanarConfiguration = uint16(d.PlanarConfiguration)
	fi.PhotometricInterpretation = d.PhotometricInterpretation
}

// ConfigFromParameters reads decoder options from go-dicom codec
// parameters. Unset or mistyped values keep their defaults.
func ConfigFromParameters(params dcodec.Parameters) *codec.Config {
	cfg := codec.DefaultConfig()
	if params == nil {
		return cfg
	}
	flag := func(name string, dst *bool) {
		if v, ok := params.GetParameter(name).(bool); ok {
			*dst = v
		}
	}
	flag(ParamTrustDeclaredColorTransform, &cfg.TrustDeclaredColorTransform)
	flag(ParamAllowPartialImageOnFrameFailure, &cfg.AllowPartialImageOnFrameFailure)
	flag(ParamPreferPlanarOutput, &cfg.PreferPlanarOutput)
	flag(ParamIgnoreOffsetTable, &cfg.IgnoreOffsetTable)
	return cfg
}

// DecodePixelData decodes every frame of src, one compressed stream per
// frame, and appends the uncompressed frames to dst. The frame metadata of
// dst, when present, receives the reconciled description of the first
// valid frame.
//
// When partial images are allowed and some frames failed, dst still
// receives every frame, failed ones zero-filled, and the returned error is
// a *codec.PartialImageError naming them alongside the result.
func DecodePixelData(ctx context.Context, transferSyntaxUID string, src, dst imagetypes.PixelData, cfg *codec.Config) (*Result, error) {
	if src == nil || dst == nil {
		return nil, fmt.Errorf("%w: source and destination PixelData cannot be nil", codec.ErrInvalidParameter)
	}
	fi := src.GetFrameInfo()
	if fi == nil {
		return nil, fmt.Errorf("%w: source pixel data has no frame info", codec.ErrInvalidParameter)
	}

	img := &Image{
		TransferSyntaxUID: transferSyntaxUID,
		Descriptor:        DescriptorFromFrameInfo(fi),
	}
	for i := 0; i < src.FrameCount(); i++ {
		frame, err := src.GetFrame(i)
		if err != nil {
			return nil, fmt.Errorf("failed to get frame %d: %w", i, err)
		}
		var group [][]byte
		if len(frame) > 0 {
			group = [][]byte{frame}
		}
		img.Frames = append(img.Frames, group)
	}

	res, err := Decode(ctx, img, cfg)
	if err != nil {
		return nil, err
	}
	frameSize := img.Descriptor.FrameSize()
	for i := range res.Frames {
		if err := dst.AddFrame(res.Raster[i*frameSize : (i+1)*frameSize]); err != nil {
			return nil, fmt.Errorf("failed to add decoded frame %d: %w", i, err)
		}
	}
	var partial *codec.PartialImageError
	first := -1
	for i, ok := range res.FrameValid {
		switch {
		case !ok:
			if partial == nil {
				partial = &codec.PartialImageError{}
			}
			partial.InvalidFrames = append(partial.InvalidFrames, i)
		case first < 0:
			first = i
		}
	}
	if out := dst.GetFrameInfo(); out != nil && first >= 0 {
		ApplyDescriptor(out, res.Frames[first])
	}
	if partial != nil {
		partial.Deviations = res.Deviations
		return res, partial
	}
	return res, nil
}
