package standard

import (
	"encoding/binary"
	"io"

	"github.com/cocosip/go-dicom-jpeg/jpeg/common"
)

// Writer provides utilities for writing JPEG data
type Writer struct {
	w   io.Writer
	buf [2]byte
}

// NewWriter creates a new JPEG writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteByte writes a single byte
func (w *Writer) WriteByte(b byte) error {
	w.buf[0] = b
	_, err := w.w.Write(w.buf[:1])
	return err
}

// WriteUint16 writes a 16-bit big-endian value
func (w *Writer) WriteUint16(v uint16) error {
	binary.BigEndian.PutUint16(w.buf[:2], v)
	_, err := w.w.Write(w.buf[:2])
	return err
}

// WriteMarker writes a JPEG marker
func (w *Writer) WriteMarker(marker uint16) error {
	return w.WriteUint16(marker)
}

// WriteSegment writes a segment with length
// The length field is automatically calculated and includes itself (2 bytes)
func (w *Writer) WriteSegment(marker uint16, data []byte) error {
	if err := w.WriteMarker(marker); err != nil {
		return err
	}
	if err := w.WriteUint16(uint16(len(data) + 2)); err != nil {
		return err
	}
	_, err := w.w.Write(data)
	return err
}

// Write writes raw bytes
func (w *Writer) Write(data []byte) (int, error) {
	return w.w.Write(data)
}

// WriteQuantTable writes a DQT segment; table is in natural order
func (w *Writer) WriteQuantTable(id byte, table *[64]int32) error {
	wide := false
	for _, q := range table {
		if q > 255 {
			wide = true
		}
	}
	if !wide {
		data := make([]byte, 1+64)
		data[0] = id
		for j := 0; j < 64; j++ {
			data[1+j] = byte(table[common.ZigZag[j]])
		}
		return w.WriteSegment(common.MarkerDQT, data)
	}
	data := make([]byte, 1+128)
	data[0] = 0x10 | id
	for j := 0; j < 64; j++ {
		binary.BigEndian.PutUint16(data[1+2*j:], uint16(table[common.ZigZag[j]]))
	}
	return w.WriteSegment(common.MarkerDQT, data)
}

// WriteHuffmanTable writes a DHT segment
// class: 0 for DC, 1 for AC
func (w *Writer) WriteHuffmanTable(class, id byte, table *common.HuffmanTable) error {
	totalValues := 0
	for _, count := range table.Bits {
		totalValues += count
	}

	data := make([]byte, 1+16+totalValues)
	data[0] = (class << 4) | id
	for i := 0; i < 16; i++ {
		data[1+i] = byte(table.Bits[i])
	}
	copy(data[17:], table.Values[:totalValues])

	return w.WriteSegment(common.MarkerDHT, data)
}

// FrameComponent is one component entry of a SOF segment
type FrameComponent struct {
	ID    byte
	H, V  byte
	Quant byte
}

// WriteFrameHeader writes a SOFn segment
func (w *Writer) WriteFrameHeader(marker uint16, precision, height, width int, comps []FrameComponent) error {
	data := make([]byte, 6+len(comps)*3)
	data[0] = byte(precision)
	binary.BigEndian.PutUint16(data[1:], uint16(height))
	binary.BigEndian.PutUint16(data[3:], uint16(width))
	data[5] = byte(len(comps))
	for i, c := range comps {
		data[6+i*3] = c.ID
		data[7+i*3] = c.H<<4 | c.V
		data[8+i*3] = c.Quant
	}
	return w.WriteSegment(marker, data)
}

// ScanComponent is one component entry of a SOS segment
type ScanComponent struct {
	ID     byte
	DC, AC byte
}

// WriteScanHeader writes a SOS segment
func (w *Writer) WriteScanHeader(comps []ScanComponent, ss, se, ah, al int) error {
	data := make([]byte, 1+len(comps)*2+3)
	data[0] = byte(len(comps))
	for i, c := range comps {
		data[1+i*2] = c.ID
		data[2+i*2] = c.DC<<4 | c.AC
	}
	n := 1 + len(comps)*2
	data[n] = byte(ss)
	data[n+1] = byte(se)
	data[n+2] = byte(ah<<4 | al)
	return w.WriteSegment(common.MarkerSOS, data)
}

// WriteRestartInterval writes a DRI segment
func (w *Writer) WriteRestartInterval(interval int) error {
	var data [2]byte
	binary.BigEndian.PutUint16(data[:], uint16(interval))
	return w.WriteSegment(common.MarkerDRI, data[:])
}

// WriteJFIF writes a minimal JFIF APP0 segment
func (w *Writer) WriteJFIF() error {
	return w.WriteSegment(common.MarkerAPP0, []byte{'J', 'F', 'I', 'F', 0, 1, 1, 0, 0, 1, 0, 1, 0, 0})
}

// WriteAdobe writes an Adobe APP14 segment with the given colour transform flag
// (0 = none/RGB, 1 = YCbCr)
func (w *Writer) WriteAdobe(transform byte) error {
	return w.WriteSegment(common.MarkerAPP14, []byte{'A', 'd', 'o', 'b', 'e', 0, 100, 0, 0, 0, 0, transform})
}
