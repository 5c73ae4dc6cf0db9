// Package jpegtest builds JPEG streams for tests: a sequential and
// progressive DCT encoder for 8 and 12-bit samples, fragment helpers, and a
// lossless (Process 14, first-order prediction) encoder/decoder pair.
package jpegtest

import (
	"bytes"
	"fmt"
	"math"

	"github.com/cocosip/go-dicom-jpeg/jpeg/common"
	"github.com/cocosip/go-dicom-jpeg/jpeg/standard"
)

// Options control the generated stream
type Options struct {
	// Precision is 8 or 12; 0 means 8
	Precision int
	// Quality scales the Annex K tables (1-100); 0 means 100 (all quantizers 1)
	Quality int
	// Progressive writes SOF2 with a DC scan and per-component AC bands
	Progressive bool
	// SuccessiveApproximation splits the progressive DC scan into a first
	// pass with Al=1 and a refinement pass
	SuccessiveApproximation bool
	// ColorTransform converts RGB input to YCbCr and writes a JFIF marker;
	// otherwise 3-component streams carry an Adobe marker with transform 0
	ColorTransform bool
	// Subsample halves chroma in both directions (4:2:0); needs ColorTransform
	Subsample bool
	// RestartInterval in MCUs, 0 for none
	RestartInterval int
}

type plane struct {
	id     byte
	h, v   int
	tq     int
	bw, bh int // padded block grid
	cw, ch int // blocks carrying image data
	coef   [][64]int32
}

type encoder struct {
	opts         Options
	width        int
	height       int
	planes       []*plane
	hmax, vmax   int
	mcusX, mcusY int
	quant        [2][64]int32
	dcCodes      []standard.HuffmanCode
	acCodes      []standard.HuffmanCode
}

// Encode compresses interleaved samples (components values per pixel)
func Encode(samples []uint16, width, height, components int, opts Options) ([]byte, error) {
	if width <= 0 || height <= 0 || width > 65535 || height > 65535 {
		return nil, common.ErrInvalidDimensions
	}
	if components != 1 && components != 3 {
		return nil, common.ErrInvalidComponents
	}
	if len(samples) < width*height*components {
		return nil, fmt.Errorf("%w: %d samples for %dx%dx%d", common.ErrInvalidData, len(samples), width, height, components)
	}
	if opts.Precision == 0 {
		opts.Precision = 8
	}
	if opts.Precision != 8 && opts.Precision != 12 {
		return nil, common.ErrInvalidPrecision
	}
	if opts.Quality == 0 {
		opts.Quality = 100
	}
	if opts.Subsample && (components != 3 || !opts.ColorTransform) {
		return nil, fmt.Errorf("%w: subsampling needs YCbCr", common.ErrUnsupportedFormat)
	}

	e := &encoder{opts: opts, width: width, height: height}
	e.quant[0] = common.ScaleQuantTable(common.DefaultLuminanceQuantTable, opts.Quality)
	e.quant[1] = common.ScaleQuantTable(common.DefaultChrominanceQuantTable, opts.Quality)
	e.dcCodes = standard.BuildHuffmanCodes(dcTable())
	e.acCodes = standard.BuildHuffmanCodes(acTable())
	e.layout(components)
	e.transform(samples, components)

	var buf bytes.Buffer
	if err := e.write(standard.NewWriter(&buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fixed length tables hold every DC category and AC run/size of 12-bit data
func dcTable() *common.HuffmanTable { return common.FixedLengthHuffmanTable(17, 5) }
func acTable() *common.HuffmanTable { return common.FixedLengthHuffmanTable(256, 9) }

func (e *encoder) layout(components int) {
	e.hmax, e.vmax = 1, 1
	for i := 0; i < components; i++ {
		p := &plane{h: 1, v: 1}
		switch {
		case components == 1:
			p.id = 1
		case e.opts.ColorTransform:
			p.id = byte(i + 1)
		default:
			p.id = "RGB"[i]
		}
		if i > 0 {
			p.tq = 1
		}
		if e.opts.Subsample && i == 0 {
			p.h, p.v = 2, 2
		}
		e.hmax = max(e.hmax, p.h)
		e.vmax = max(e.vmax, p.v)
		e.planes = append(e.planes, p)
	}
	e.mcusX = common.DivCeil(e.width, 8*e.hmax)
	e.mcusY = common.DivCeil(e.height, 8*e.vmax)
	for _, p := range e.planes {
		p.bw, p.bh = e.mcusX*p.h, e.mcusY*p.v
		p.cw = common.DivCeil(common.DivCeil(e.width*p.h, e.hmax), 8)
		p.ch = common.DivCeil(common.DivCeil(e.height*p.v, e.vmax), 8)
		p.coef = make([][64]int32, p.bw*p.bh)
	}
}

// transform converts colour, downsamples, and quantizes every block
func (e *encoder) transform(samples []uint16, components int) {
	n := e.width * e.height
	full := make([][]float64, components)
	for c := range full {
		full[c] = make([]float64, n)
		for i := 0; i < n; i++ {
			full[c][i] = float64(samples[i*components+c])
		}
	}
	if components == 3 && e.opts.ColorTransform {
		center := float64(int(1) << uint(e.opts.Precision-1))
		for i := 0; i < n; i++ {
			r, g, b := full[0][i], full[1][i], full[2][i]
			full[0][i] = 0.299*r + 0.587*g + 0.114*b
			full[1][i] = -0.168736*r - 0.331264*g + 0.5*b + center
			full[2][i] = 0.5*r - 0.418688*g - 0.081312*b + center
		}
	}

	maxVal := float64(int(1)<<uint(e.opts.Precision) - 1)
	for c, p := range e.planes {
		fx, fy := e.hmax/p.h, e.vmax/p.v
		pw, ph := common.DivCeil(e.width, fx), common.DivCeil(e.height, fy)
		stride := p.bw * 8
		pix := make([]uint16, stride*p.bh*8)
		for y := 0; y < p.bh*8; y++ {
			for x := 0; x < stride; x++ {
				// replicate the last row and column into the padding
				sx, sy := min(x, pw-1), min(y, ph-1)
				var sum float64
				for dy := 0; dy < fy; dy++ {
					for dx := 0; dx < fx; dx++ {
						ix := min(sx*fx+dx, e.width-1)
						iy := min(sy*fy+dy, e.height-1)
						sum += full[c][iy*e.width+ix]
					}
				}
				pix[y*stride+x] = uint16(math.Max(0, math.Min(maxVal, math.Round(sum/float64(fx*fy)))))
			}
		}

		q := &e.quant[p.tq]
		var coef [64]float64
		for by := 0; by < p.bh; by++ {
			for bx := 0; bx < p.bw; bx++ {
				common.DCT(pix[by*8*stride+bx*8:], stride, e.opts.Precision, &coef)
				blk := &p.coef[by*p.bw+bx]
				for k := 0; k < 64; k++ {
					blk[k] = int32(math.Round(coef[k] / float64(q[k])))
				}
			}
		}
	}
}

func (e *encoder) write(w *standard.Writer) error {
	if err := w.WriteMarker(common.MarkerSOI); err != nil {
		return err
	}
	if len(e.planes) == 3 {
		var err error
		if e.opts.ColorTransform {
			err = w.WriteJFIF()
		} else {
			err = w.WriteAdobe(0)
		}
		if err != nil {
			return err
		}
	}
	for i := 0; i < min(len(e.planes), 2); i++ {
		if err := w.WriteQuantTable(byte(i), &e.quant[i]); err != nil {
			return err
		}
	}

	marker := uint16(common.MarkerSOF0)
	switch {
	case e.opts.Progressive:
		marker = common.MarkerSOF2
	case e.opts.Precision > 8:
		marker = common.MarkerSOF1
	}
	comps := make([]standard.FrameComponent, len(e.planes))
	for i, p := range e.planes {
		comps[i] = standard.FrameComponent{ID: p.id, H: byte(p.h), V: byte(p.v), Quant: byte(p.tq)}
	}
	if err := w.WriteFrameHeader(marker, e.opts.Precision, e.height, e.width, comps); err != nil {
		return err
	}
	if err := w.WriteHuffmanTable(0, 0, dcTable()); err != nil {
		return err
	}
	if err := w.WriteHuffmanTable(1, 0, acTable()); err != nil {
		return err
	}
	if e.opts.RestartInterval > 0 {
		if err := w.WriteRestartInterval(e.opts.RestartInterval); err != nil {
			return err
		}
	}

	for _, s := range e.scans() {
		if err := e.writeScan(w, s); err != nil {
			return err
		}
	}
	return w.WriteMarker(common.MarkerEOI)
}

type scan struct {
	planes []*plane
	ss, se int
	ah, al int
}

// scans returns the scan script
func (e *encoder) scans() []scan {
	if !e.opts.Progressive {
		return []scan{{planes: e.planes, se: 63}}
	}
	var script []scan
	if e.opts.SuccessiveApproximation {
		script = append(script,
			scan{planes: e.planes, al: 1},
			scan{planes: e.planes, ah: 1},
		)
	} else {
		script = append(script, scan{planes: e.planes})
	}
	for _, p := range e.planes {
		script = append(script,
			scan{planes: []*plane{p}, ss: 1, se: 5},
			scan{planes: []*plane{p}, ss: 6, se: 63},
		)
	}
	return script
}

func (e *encoder) writeScan(w *standard.Writer, s scan) error {
	comps := make([]standard.ScanComponent, len(s.planes))
	for i, p := range s.planes {
		comps[i] = standard.ScanComponent{ID: p.id}
	}
	if err := w.WriteScanHeader(comps, s.ss, s.se, s.ah, s.al); err != nil {
		return err
	}

	var data bytes.Buffer
	enc := standard.NewHuffmanEncoder(&data)
	preds := make([]int32, len(s.planes))
	encodeBlock := func(i int, blk *[64]int32) error {
		if s.ss == 0 {
			if s.ah != 0 {
				return enc.WriteBits(uint32(blk[0]>>s.al)&1, 1)
			}
			dc := blk[0] >> s.al
			if err := standard.EncodeDC(enc, int(dc-preds[i]), e.dcCodes); err != nil {
				return err
			}
			preds[i] = dc
		}
		if s.se == 0 {
			return nil
		}
		return standard.EncodeAC(enc, blk, max(s.ss, 1), s.se, e.acCodes)
	}

	total := e.mcusX * e.mcusY
	if len(s.planes) == 1 {
		total = s.planes[0].cw * s.planes[0].ch
	}
	rst := 0
	for mcu := 0; mcu < total; mcu++ {
		if e.opts.RestartInterval > 0 && mcu > 0 && mcu%e.opts.RestartInterval == 0 {
			if err := enc.WriteRestart(rst); err != nil {
				return err
			}
			rst++
			for i := range preds {
				preds[i] = 0
			}
		}
		if len(s.planes) == 1 {
			p := s.planes[0]
			bx, by := mcu%p.cw, mcu/p.cw
			if err := encodeBlock(0, &p.coef[by*p.bw+bx]); err != nil {
				return err
			}
			continue
		}
		mx, my := mcu%e.mcusX, mcu/e.mcusX
		for i, p := range s.planes {
			for j := 0; j < p.h*p.v; j++ {
				bx := mx*p.h + j%p.h
				by := my*p.v + j/p.h
				if err := encodeBlock(i, &p.coef[by*p.bw+bx]); err != nil {
					return err
				}
			}
		}
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := w.Write(data.Bytes())
	return err
}
