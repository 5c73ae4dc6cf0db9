package pipeline

import (
	"fmt"
	"strconv"

	"github.com/cocosip/go-dicom-jpeg/codec"
	"github.com/cocosip/go-dicom-jpeg/jpeg/common"
	"github.com/cocosip/go-dicom-jpeg/jpeg/engine"
)

// Reconcile compares the declared description of a frame with what the
// engine produced. Benign differences are corrected in the returned
// descriptor and reported as deviations; differences the raster cannot
// represent fail with ErrIrreconcilablePixelDescription.
func Reconcile(frameIndex int, declared codec.FrameDescriptor, f *engine.Frame, planar bool) (codec.FrameDescriptor, []codec.Deviation, error) {
	irreconcilable := func(format string, args ...any) error {
		return codec.NewDecodeError(codec.KindIrreconcilablePixelDescription, frameIndex, fmt.Sprintf(format, args...), nil)
	}
	if f.Components != declared.SamplesPerPixel {
		return declared, nil, irreconcilable("declared %d samples per pixel, stream has %d components",
			declared.SamplesPerPixel, f.Components)
	}
	if f.Width != declared.Columns || f.Height != declared.Rows {
		return declared, nil, irreconcilable("declared %dx%d, stream is %dx%d",
			declared.Columns, declared.Rows, f.Width, f.Height)
	}
	if f.Precision > declared.BitsAllocated {
		return declared, nil, irreconcilable("%d-bit samples do not fit %d bits allocated",
			f.Precision, declared.BitsAllocated)
	}

	out := declared
	var devs []codec.Deviation
	fix := func(field, was, now string) {
		devs = append(devs, codec.Deviation{FrameIndex: frameIndex, Field: field, Declared: was, Actual: now})
	}

	switch {
	case out.BitsStored > f.Precision:
		out.BitsStored = f.Precision
	case out.BitsStored < f.Precision:
		// samples wider than declared would be clipped by readers
		_, maxVal := common.SampleRange(f.Data, f.SampleBytes)
		if common.BitsRequired(maxVal) > out.BitsStored {
			out.BitsStored = f.Precision
		}
	}
	if out.BitsStored != declared.BitsStored {
		fix("BitsStored", strconv.Itoa(declared.BitsStored), strconv.Itoa(out.BitsStored))
	}
	if out.HighBit != out.BitsStored-1 {
		fix("HighBit", strconv.Itoa(out.HighBit), strconv.Itoa(out.BitsStored-1))
		out.HighBit = out.BitsStored - 1
	}

	pi := codec.NormalizePhotometric(declared.PhotometricInterpretation)
	if f.Components == 3 {
		switch {
		case f.ColorTransformed && codec.IsYBR(pi):
			out.PhotometricInterpretation = codec.PhotometricRGB
		case pi == codec.PhotometricYBRFull422 && f.Upsampled:
			out.PhotometricInterpretation = codec.PhotometricYBRFull
		}
		if out.PhotometricInterpretation != declared.PhotometricInterpretation {
			fix("PhotometricInterpretation", declared.PhotometricInterpretation, out.PhotometricInterpretation)
		}

		layout := 0
		if planar {
			layout = 1
		}
		if out.PlanarConfiguration != layout {
			fix("PlanarConfiguration", strconv.Itoa(out.PlanarConfiguration), strconv.Itoa(layout))
			out.PlanarConfiguration = layout
		}
	}
	return out, devs, nil
}
