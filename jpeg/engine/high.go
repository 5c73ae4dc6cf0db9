package engine

import (
	"fmt"

	"github.com/cocosip/go-dicom-jpeg/jpeg/common"
)

// component is the coefficient store of one frame component
type component struct {
	id    int
	h, v  int
	tq    int
	qt    [64]int32 // natural order, captured at the first scan
	qtSet bool

	// padded block grid covering whole MCUs
	bw, bh int
	// blocks that carry image data; non-interleaved scans visit only these
	cw, ch int

	coef [][64]int32
}

// HighPrecision decodes extended (12-bit) and progressive DCT streams. Scans
// are entropy decoded as soon as they are complete; coefficients accumulate
// across scans until EOI.
type HighPrecision struct {
	stream
	opts Options

	quant    [4][64]int32
	quantSet [4]bool
	huff     [2][4]*common.HuffmanTable
	restart  int

	comps        []component
	hmax, vmax   int
	mcusX, mcusY int

	frame *Frame
}

var _ Engine = (*HighPrecision)(nil)

// NewHighPrecision creates an engine for streams of up to 12 bits per sample.
// 8-bit streams are accepted too and produce 16-bit samples.
func NewHighPrecision(opts Options) *HighPrecision {
	return &HighPrecision{opts: opts}
}

// Precision returns 12
func (e *HighPrecision) Precision() int { return 12 }

// Feed appends the next piece of the compressed stream
func (e *HighPrecision) Feed(fragment []byte) (State, error) {
	return e.feed(e, fragment)
}

// Reset prepares the engine for the next frame. Coefficient storage is
// released; tables are redefined by every frame.
func (e *HighPrecision) Reset() {
	e.reset()
	e.quant = [4][64]int32{}
	e.quantSet = [4]bool{}
	e.huff = [2][4]*common.HuffmanTable{}
	e.restart = 0
	e.comps = nil
	e.frame = nil
}

func (e *HighPrecision) acceptPrecision(p int) bool {
	return p == 8 || p == 12
}

func (e *HighPrecision) frameHeader(h *Header) error {
	e.hmax, e.vmax = 1, 1
	e.comps = make([]component, len(h.Components))
	for i, c := range h.Components {
		hc, vc := c.H, c.V
		if len(h.Components) == 1 {
			// a single component is never interleaved; one block per MCU
			hc, vc = 1, 1
		}
		e.comps[i] = component{id: c.ID, h: hc, v: vc, tq: c.Quant}
		e.hmax = max(e.hmax, hc)
		e.vmax = max(e.vmax, vc)
	}
	e.mcusX = common.DivCeil(h.Width, 8*e.hmax)
	e.mcusY = common.DivCeil(h.Height, 8*e.vmax)
	for i := range e.comps {
		c := &e.comps[i]
		c.bw = e.mcusX * c.h
		c.bh = e.mcusY * c.v
		c.cw = common.DivCeil(common.DivCeil(h.Width*c.h, e.hmax), 8)
		c.ch = common.DivCeil(common.DivCeil(h.Height*c.v, e.vmax), 8)
		c.coef = make([][64]int32, c.bw*c.bh)
	}
	return nil
}

func (e *HighPrecision) tables(marker uint16, data []byte) error {
	switch marker {
	case common.MarkerDHT:
		return common.ParseHuffmanTables(data, func(class, id int, t *common.HuffmanTable) {
			e.huff[class][id] = t
		})
	case common.MarkerDQT:
		return e.parseQuant(data)
	case common.MarkerDRI:
		e.restart = e.hdr.RestartInterval
	}
	return nil
}

// parseQuant reads every table of a DQT payload (B.2.4.1)
func (e *HighPrecision) parseQuant(data []byte) error {
	for len(data) > 0 {
		pq := int(data[0] >> 4)
		tq := int(data[0] & 0x0F)
		if pq > 1 || tq > 3 {
			return fmt.Errorf("%w: Pq=%d Tq=%d", common.ErrInvalidDQT, pq, tq)
		}
		n := 64 * (pq + 1)
		if len(data) < 1+n {
			return common.ErrInvalidDQT
		}
		for i := 0; i < 64; i++ {
			var q int32
			if pq == 0 {
				q = int32(data[1+i])
			} else {
				q = int32(data[1+2*i])<<8 | int32(data[2+2*i])
			}
			if q == 0 {
				return fmt.Errorf("%w: zero quantizer", common.ErrInvalidDQT)
			}
			e.quant[tq][common.ZigZag[i]] = q
		}
		e.quantSet[tq] = true
		data = data[1+n:]
	}
	return nil
}

// Frame dequantizes and inverse transforms the accumulated coefficients
func (e *HighPrecision) Frame() (*Frame, error) {
	if e.state != FrameComplete {
		return nil, ErrFrameIncomplete
	}
	if e.frame != nil {
		return e.frame, nil
	}

	h := &e.hdr
	f := &Frame{
		Width:       h.Width,
		Height:      h.Height,
		Components:  len(e.comps),
		Precision:   h.Precision,
		SampleBytes: 2,
		Progressive: h.Progressive(),
		Scans:       e.scans,
	}

	planes := make([][]uint16, len(e.comps))
	for i := range e.comps {
		c := &e.comps[i]
		if !c.qtSet {
			return nil, fmt.Errorf("%w: component %d has no scan", common.ErrInvalidData, c.id)
		}
		planes[i] = e.reconstruct(c, h.Precision)
		if c.h != e.hmax || c.v != e.vmax {
			f.Upsampled = true
		}
	}

	transform := e.opts.ColorTransform && f.Components == 3
	f.ColorTransformed = transform
	f.Data = make([]byte, f.Width*f.Height*f.Components*2)
	var s [3]int32
	o := 0
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			for i := range e.comps {
				c := &e.comps[i]
				sy := y * c.v / e.vmax
				sx := x * c.h / e.hmax
				s[i] = int32(planes[i][sy*c.bw*8+sx])
			}
			if transform {
				s[0], s[1], s[2] = ycbcrToRGB(s[0], s[1], s[2], h.Precision)
			}
			for i := 0; i < f.Components; i++ {
				f.Data[o] = byte(s[i])
				f.Data[o+1] = byte(s[i] >> 8)
				o += 2
			}
		}
	}
	e.frame = f
	return f, nil
}

// reconstruct returns the component's samples with a stride of bw*8
func (e *HighPrecision) reconstruct(c *component, precision int) []uint16 {
	stride := c.bw * 8
	plane := make([]uint16, stride*c.bh*8)
	var blk [64]int32
	for by := 0; by < c.ch; by++ {
		for bx := 0; bx < c.cw; bx++ {
			src := &c.coef[by*c.bw+bx]
			for k := 0; k < 64; k++ {
				blk[k] = src[k] * c.qt[k]
			}
			common.IDCT(&blk, plane[by*8*stride+bx*8:], stride, precision)
		}
	}
	return plane
}
