package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/cocosip/go-dicom-jpeg/codec"
	"github.com/cocosip/go-dicom-jpeg/jpeg/common"
	"github.com/cocosip/go-dicom-jpeg/jpeg/engine"
	"github.com/cocosip/go-dicom-jpeg/logging"
)

// Image is the compressed pixel data of one DICOM image together with its
// declared description. Fragments are borrowed and never modified.
type Image struct {
	TransferSyntaxUID string
	Descriptor        codec.FrameDescriptor

	// Index identifies the image among those of one series or batch; it
	// is reported as DecodeError.ImageIndex
	Index int

	// Frames holds the fragments of every frame in stream order
	Frames [][][]byte

	// CompressedBitDepth is the sample precision of the JPEG streams. Zero
	// reads it from the first frame header.
	CompressedBitDepth int

	// Raster optionally receives the decoded frames. It must hold at least
	// FrameSize bytes per decoded frame.
	Raster []byte
}

// Result is the outcome of a decode call
type Result struct {
	CallID string
	Raster []byte

	// Frames holds the reconciled description of every frame
	Frames     []codec.FrameDescriptor
	FrameValid []bool
	Deviations []codec.Deviation

	// Scans is the number of scans each frame needed
	Scans []int
}

// Decode decompresses every frame of img into one raster, frame i starting
// at i*FrameSize. A frame that fails aborts the call unless
// cfg.AllowPartialImageOnFrameFailure is set, in which case the frame is
// zero-filled and reported as a deviation. Descriptions the raster cannot
// represent always abort.
func Decode(ctx context.Context, img *Image, cfg *codec.Config) (*Result, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", codec.ErrInvalidParameter)
	}
	res, err := decode(ctx, img, cfg, 0, len(img.Frames))
	return res, withImageIndex(err, img.Index)
}

// DecodeFrame decompresses the single frame index of img into its own raster
func DecodeFrame(ctx context.Context, img *Image, index int, cfg *codec.Config) (*Result, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", codec.ErrInvalidParameter)
	}
	if index < 0 || index >= len(img.Frames) {
		return nil, fmt.Errorf("%w: frame %d of %d", codec.ErrInvalidParameter, index, len(img.Frames))
	}
	res, err := decode(ctx, img, cfg, index, index+1)
	return res, withImageIndex(err, img.Index)
}

func withImageIndex(err error, index int) error {
	var de *codec.DecodeError
	if errors.As(err, &de) {
		de.ImageIndex = index
	}
	return err
}

func decode(ctx context.Context, img *Image, cfg *codec.Config, lo, hi int) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	v, err := codec.Lookup(img.TransferSyntaxUID)
	if err != nil {
		return nil, codec.NewDecodeError(codec.KindUnsupportedCodingVariant, -1, "", err)
	}
	desc := img.Descriptor
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if hi <= lo {
		return nil, fmt.Errorf("%w: image has no frames", codec.ErrInvalidParameter)
	}

	n := hi - lo
	res := &Result{
		CallID:     uuid.NewString(),
		Frames:     make([]codec.FrameDescriptor, n),
		FrameValid: make([]bool, n),
		Scans:      make([]int, n),
	}
	ctx = logging.AppendCtx(ctx, slog.String("call", res.CallID), slog.String("variant", v.Name))

	hdr, probeErr := engine.Probe(img.Frames[lo]...)
	bits := img.CompressedBitDepth
	if bits == 0 {
		bits = desc.BitsStored
		if probeErr == nil {
			bits = hdr.Precision
		}
	}

	declared := desc.SamplesPerPixel == 3 && codec.IsYBR(desc.PhotometricInterpretation)
	transform := declared
	if probeErr == nil && len(hdr.Components) == 3 && hdr.ColorTransform() != declared {
		applied := "declared"
		if !cfg.TrustDeclaredColorTransform {
			transform = hdr.ColorTransform()
			applied = "stream"
		}
		d := codec.Deviation{
			FrameIndex: -1,
			Field:      "ColorTransform",
			Declared:   strconv.FormatBool(declared),
			Actual:     strconv.FormatBool(hdr.ColorTransform()),
			Detail:     "stream markers disagree with " + desc.PhotometricInterpretation + ", applied " + applied,
		}
		res.Deviations = append(res.Deviations, d)
		slog.WarnContext(ctx, "colour transform mismatch", slog.String("deviation", d.String()), slog.String("applied", applied))
	}

	eng, err := SelectEngine(&v, cfg, bits, transform)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "decoding image",
		slog.Int("frames", n),
		slog.Int("bits", bits),
		slog.Int("engine", eng.Precision()),
		slog.Bool("colorTransform", transform))

	frameSize := desc.FrameSize()
	raster := img.Raster
	switch {
	case raster == nil:
		raster = make([]byte, frameSize*n)
	case len(raster) < frameSize*n:
		panic(fmt.Sprintf("pipeline: raster holds %d bytes, %d frames of %d bytes need %d",
			len(raster), n, frameSize, frameSize*n))
	default:
		raster = raster[:frameSize*n]
	}

	planar := cfg.PreferPlanarOutput
	var firstErr error
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		index := lo + i
		region := raster[i*frameSize : (i+1)*frameSize]
		fd, devs, err := decodeFrame(eng, index, img.Frames[index], desc, planar, region)
		res.Scans[i] = eng.Scans()
		eng.Reset()
		if err != nil {
			if !cfg.AllowPartialImageOnFrameFailure || errors.Is(err, codec.ErrIrreconcilablePixelDescription) {
				return nil, err
			}
			clear(region)
			res.Frames[i] = desc
			res.Deviations = append(res.Deviations, codec.Deviation{
				FrameIndex: index,
				Kind:       codec.KindOf(err),
				Detail:     err.Error(),
			})
			slog.WarnContext(ctx, "frame zero-filled", slog.Int("frame", index), slog.Any("error", err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		res.Frames[i] = fd
		res.FrameValid[i] = true
		res.Deviations = append(res.Deviations, devs...)
		for _, d := range devs {
			slog.WarnContext(ctx, "pixel description corrected", slog.Int("frame", index), slog.String("deviation", d.String()))
		}
		slog.DebugContext(ctx, "frame decoded", slog.Int("frame", index), slog.Int("scans", res.Scans[i]))
	}

	if firstErr != nil && !anyValid(res.FrameValid) {
		return nil, firstErr
	}
	res.Raster = raster
	return res, nil
}

// decodeFrame feeds all fragments of one frame, including any that follow
// the end of image, and writes the reconciled samples to dst
func decodeFrame(eng engine.Engine, index int, fragments [][]byte, declared codec.FrameDescriptor, planar bool, dst []byte) (codec.FrameDescriptor, []codec.Deviation, error) {
	if len(fragments) == 0 {
		return declared, nil, codec.NewDecodeError(codec.KindTruncatedFragmentStream, index, "frame has no fragments", nil)
	}
	for _, frag := range fragments {
		if _, err := eng.Feed(frag); err != nil {
			de := codec.NewDecodeError(engineErrorKind(err), index, "", err)
			de.Offset = eng.Offset()
			return declared, nil, de
		}
	}
	if eng.State() != engine.FrameComplete {
		de := codec.NewDecodeError(codec.KindTruncatedFragmentStream, index,
			fmt.Sprintf("fragments ended in state %s", eng.State()), nil)
		de.Offset = eng.Offset()
		return declared, nil, de
	}

	f, err := eng.Frame()
	if err != nil {
		de := codec.NewDecodeError(engineErrorKind(err), index, "", err)
		de.Offset = eng.Offset()
		return declared, nil, de
	}
	fd, devs, err := Reconcile(index, declared, f, planar)
	if err != nil {
		return declared, nil, err
	}
	writeFrame(dst, f, fd.BytesPerSample(), planar)
	return fd, devs, nil
}

func engineErrorKind(err error) codec.ErrorKind {
	switch {
	case errors.Is(err, common.ErrInvalidPrecision):
		return codec.KindInvalidBitDepth
	case errors.Is(err, common.ErrUnsupportedFormat):
		return codec.KindUnsupportedCodingVariant
	default:
		return codec.KindEngineInternalFailure
	}
}

func anyValid(valid []bool) bool {
	for _, v := range valid {
		if v {
			return true
		}
	}
	return false
}
