package jpegtest

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cocosip/go-dicom-jpeg/jpeg/common"
	"github.com/cocosip/go-dicom-jpeg/jpeg/standard"
)

// EncodeLossless compresses a raster with the lossless process and the
// first-order (left) predictor. The raster holds interleaved samples, one
// byte each up to 8 bits of precision and two little-endian bytes above.
func EncodeLossless(raster []byte, width, height, components, precision int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, common.ErrInvalidDimensions
	}
	if components != 1 && components != 3 {
		return nil, common.ErrInvalidComponents
	}
	if precision < 2 || precision > 16 {
		return nil, common.ErrInvalidPrecision
	}
	samples, err := unpack(raster, width*height*components, precision)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := standard.NewWriter(&buf)
	if err := w.WriteMarker(common.MarkerSOI); err != nil {
		return nil, err
	}
	comps := make([]standard.FrameComponent, components)
	scanComps := make([]standard.ScanComponent, components)
	for i := range comps {
		comps[i] = standard.FrameComponent{ID: byte(i + 1), H: 1, V: 1}
		scanComps[i] = standard.ScanComponent{ID: byte(i + 1)}
	}
	if err := w.WriteFrameHeader(common.MarkerSOF3, precision, height, width, comps); err != nil {
		return nil, err
	}
	if err := w.WriteHuffmanTable(0, 0, dcTable()); err != nil {
		return nil, err
	}
	// Ss carries the predictor selection value
	if err := w.WriteScanHeader(scanComps, 1, 0, 0, 0); err != nil {
		return nil, err
	}

	var data bytes.Buffer
	enc := standard.NewHuffmanEncoder(&data)
	codes := standard.BuildHuffmanCodes(dcTable())
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			for c := 0; c < components; c++ {
				i := (row*width+col)*components + c
				diff := wrapDiff(samples[i] - predict(samples, row, col, c, width, components, precision))
				if diff == 32768 {
					// category 16 carries no additional bits
					code := codes[16]
					if err := enc.WriteBits(uint32(code.Code), code.Len); err != nil {
						return nil, err
					}
					continue
				}
				if err := standard.EncodeDC(enc, diff, codes); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	if _, err := w.Write(data.Bytes()); err != nil {
		return nil, err
	}
	if err := w.WriteMarker(common.MarkerEOI); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeLossless reverses EncodeLossless and returns the raster in the same
// layout together with its geometry
func DecodeLossless(stream []byte) (raster []byte, width, height, components, precision int, err error) {
	r := standard.NewReader(bytes.NewReader(stream))
	if m, err := r.ReadMarker(); err != nil || m != common.MarkerSOI {
		return nil, 0, 0, 0, 0, common.ErrInvalidSOI
	}

	tables := map[int]*common.HuffmanTable{}
	var selectors []int
	for {
		m, err := r.ReadMarker()
		if err != nil {
			return nil, 0, 0, 0, 0, err
		}
		if !common.HasLength(m) {
			return nil, 0, 0, 0, 0, fmt.Errorf("%w: %s", common.ErrInvalidMarker, common.MarkerName(m))
		}
		seg, err := r.ReadSegment()
		if err != nil {
			return nil, 0, 0, 0, 0, err
		}

		switch m {
		case common.MarkerSOF3:
			if len(seg) < 6 {
				return nil, 0, 0, 0, 0, common.ErrInvalidSOF
			}
			precision = int(seg[0])
			height = int(binary.BigEndian.Uint16(seg[1:]))
			width = int(binary.BigEndian.Uint16(seg[3:]))
			components = int(seg[5])
		case common.MarkerDHT:
			err = common.ParseHuffmanTables(seg, func(class, id int, t *common.HuffmanTable) {
				if class == 0 {
					tables[id] = t
				}
			})
			if err != nil {
				return nil, 0, 0, 0, 0, err
			}
		case common.MarkerSOS:
			if components == 0 || len(seg) != 4+2*components || int(seg[0]) != components {
				return nil, 0, 0, 0, 0, common.ErrInvalidSOS
			}
			if seg[1+2*components] != 1 {
				return nil, 0, 0, 0, 0, fmt.Errorf("%w: predictor %d", common.ErrUnsupportedFormat, seg[1+2*components])
			}
			for c := 0; c < components; c++ {
				selectors = append(selectors, int(seg[2+2*c]>>4))
			}
			samples, err := decodeLosslessScan(stream[r.Offset():], tables, selectors, width, height, components, precision)
			if err != nil {
				return nil, 0, 0, 0, 0, err
			}
			return pack(samples, precision), width, height, components, precision, nil
		}
	}
}

func decodeLosslessScan(entropy []byte, tables map[int]*common.HuffmanTable, selectors []int, width, height, components, precision int) ([]int, error) {
	samples := make([]int, width*height*components)
	br := common.NewBitReader(entropy)
	mask := 1<<uint(precision) - 1
	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			for c := 0; c < components; c++ {
				t := tables[selectors[c]]
				if t == nil {
					return nil, fmt.Errorf("%w: table %d undefined", common.ErrInvalidDHT, selectors[c])
				}
				s, err := br.Decode(t)
				if err != nil {
					return nil, err
				}
				diff := int(br.ReceiveExtend(int(s)))
				i := (row*width+col)*components + c
				samples[i] = (predict(samples, row, col, c, width, components, precision) + diff) & mask
			}
		}
	}
	if br.Overrun() {
		return nil, common.ErrUnexpectedEOF
	}
	return samples, nil
}

// predict returns the first-order prediction: 2^(P-1) for the first sample,
// the sample above at the start of a row, the left neighbour elsewhere
func predict(samples []int, row, col, c, width, components, precision int) int {
	switch {
	case col > 0:
		return samples[(row*width+col-1)*components+c]
	case row > 0:
		return samples[((row-1)*width)*components+c]
	default:
		return 1 << uint(precision-1)
	}
}

// wrapDiff reduces a difference modulo 2^16 into [-32767, 32768]
func wrapDiff(d int) int {
	d &= 0xFFFF
	if d > 32768 {
		d -= 65536
	}
	return d
}

func unpack(raster []byte, n, precision int) ([]int, error) {
	bps := 1
	if precision > 8 {
		bps = 2
	}
	if len(raster) < n*bps {
		return nil, fmt.Errorf("%w: raster holds %d bytes, need %d", common.ErrInvalidData, len(raster), n*bps)
	}
	mask := 1<<uint(precision) - 1
	samples := make([]int, n)
	for i := range samples {
		if bps == 1 {
			samples[i] = int(raster[i]) & mask
		} else {
			samples[i] = int(binary.LittleEndian.Uint16(raster[2*i:])) & mask
		}
	}
	return samples, nil
}

func pack(samples []int, precision int) []byte {
	if precision <= 8 {
		out := make([]byte, len(samples))
		for i, s := range samples {
			out[i] = byte(s)
		}
		return out
	}
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}
