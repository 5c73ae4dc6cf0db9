package engine

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/gen2brain/jpegn"

	"github.com/cocosip/go-dicom-jpeg/jpeg/common"
)

// LowPrecision decodes 8-bit DCT streams. The segmenter validates and
// frames the stream; sequential pixel decoding is delegated to jpegn and
// progressive streams go through image/jpeg.
type LowPrecision struct {
	stream
	opts  Options
	frame *Frame
}

var _ Engine = (*LowPrecision)(nil)

// NewLowPrecision creates an engine for streams of at most 8 bits per sample
func NewLowPrecision(opts Options) *LowPrecision {
	return &LowPrecision{opts: opts}
}

// Precision returns 8
func (e *LowPrecision) Precision() int { return 8 }

// Feed appends the next piece of the compressed stream
func (e *LowPrecision) Feed(fragment []byte) (State, error) {
	return e.feed(e, fragment)
}

// Reset prepares the engine for the next frame
func (e *LowPrecision) Reset() {
	e.reset()
	e.frame = nil
}

func (e *LowPrecision) acceptPrecision(p int) bool { return p == 8 }
func (e *LowPrecision) frameHeader(*Header) error { return nil }
func (e *LowPrecision) tables(uint16, []byte) error { return nil }
func (e *LowPrecision) scan(header, entropy []byte) error { return nil }

// Frame decodes the complete stream
func (e *LowPrecision) Frame() (*Frame, error) {
	if e.state != FrameComplete {
		return nil, ErrFrameIncomplete
	}
	if e.frame != nil {
		return e.frame, nil
	}

	img, err := e.decode()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidData, err)
	}

	h := &e.hdr
	f := &Frame{
		Width:       h.Width,
		Height:      h.Height,
		Components:  len(h.Components),
		Precision:   8,
		SampleBytes: 1,
		Progressive: h.Progressive(),
		Scans:       e.scans,
	}
	for _, c := range h.Components[1:] {
		if c.H != h.Components[0].H || c.V != h.Components[0].V {
			f.Upsampled = true
		}
	}
	if b := img.Bounds(); b.Dx() != f.Width || b.Dy() != f.Height {
		return nil, fmt.Errorf("%w: decoded %dx%d, header %dx%d", common.ErrInvalidDimensions, b.Dx(), b.Dy(), f.Width, f.Height)
	}

	switch m := img.(type) {
	case *image.Gray:
		if f.Components != 1 {
			return nil, fmt.Errorf("%w: grayscale output for %d components", common.ErrInvalidComponents, f.Components)
		}
		f.Data = make([]byte, f.Width*f.Height)
		for y := 0; y < f.Height; y++ {
			copy(f.Data[y*f.Width:(y+1)*f.Width], m.Pix[y*m.Stride:])
		}
	case *image.YCbCr:
		e.fromYCbCr(f, m)
	case *image.RGBA:
		// stream signalled untransformed RGB
		e.fromRGBA(f, m)
	default:
		return nil, fmt.Errorf("%w: %T output", common.ErrUnsupportedFormat, img)
	}
	e.frame = f
	return f, nil
}

// decode runs the pixel decoder for the buffered stream. jpegn loses
// restart marker sync inside progressive scans.
func (e *LowPrecision) decode() (image.Image, error) {
	r := bytes.NewReader(e.image())
	if e.hdr.Progressive() {
		return jpeg.Decode(r)
	}
	return jpegn.Decode(r)
}

func (e *LowPrecision) fromYCbCr(f *Frame, m *image.YCbCr) {
	f.Data = make([]byte, f.Width*f.Height*3)
	f.ColorTransformed = e.opts.ColorTransform
	b := m.Bounds()
	i := 0
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			yi := m.YOffset(b.Min.X+x, b.Min.Y+y)
			ci := m.COffset(b.Min.X+x, b.Min.Y+y)
			e.put(f.Data[i:i+3], m.Y[yi], m.Cb[ci], m.Cr[ci])
			i += 3
		}
	}
}

func (e *LowPrecision) fromRGBA(f *Frame, m *image.RGBA) {
	f.Data = make([]byte, f.Width*f.Height*3)
	f.ColorTransformed = e.opts.ColorTransform
	i := 0
	for y := 0; y < f.Height; y++ {
		row := m.Pix[y*m.Stride:]
		for x := 0; x < f.Width; x++ {
			e.put(f.Data[i:i+3], row[4*x], row[4*x+1], row[4*x+2])
			i += 3
		}
	}
}

func (e *LowPrecision) put(dst []byte, c0, c1, c2 byte) {
	if !e.opts.ColorTransform {
		dst[0], dst[1], dst[2] = c0, c1, c2
		return
	}
	r, g, b := ycbcrToRGB(int32(c0), int32(c1), int32(c2), 8)
	dst[0], dst[1], dst[2] = byte(r), byte(g), byte(b)
}
