package engine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cocosip/go-dicom-jpeg/jpeg/common"
	"github.com/cocosip/go-dicom-jpeg/jpeg/standard"
)

// ComponentInfo is one component of a frame header
type ComponentInfo struct {
	ID    int
	H, V  int
	Quant int
}

// Header holds what the marker segments before the first scan say about a stream
type Header struct {
	Marker          uint16 // SOFn
	Precision       int
	Width, Height   int
	Components      []ComponentInfo
	RestartInterval int
	JFIF            bool
	Adobe           bool
	AdobeTransform  int
}

// Progressive reports whether the frame uses progressive DCT
func (h *Header) Progressive() bool {
	return common.IsProgressive(h.Marker)
}

// Process returns the SOF mnemonic, e.g. "SOF1"
func (h *Header) Process() string {
	return common.MarkerName(h.Marker)
}

// ColorTransform infers whether 3-component samples were converted to YCbCr
// by the encoder: JFIF implies YCbCr, the Adobe marker carries an explicit
// flag, and component ids 'R','G','B' mean no transform.
func (h *Header) ColorTransform() bool {
	if len(h.Components) != 3 {
		return false
	}
	if h.JFIF {
		return true
	}
	if h.Adobe {
		return h.AdobeTransform != 0
	}
	c := h.Components
	if c[0].ID == 'R' && c[1].ID == 'G' && c[2].ID == 'B' {
		return false
	}
	return true
}

// parseFrameHeader decodes a SOF payload into h
func parseFrameHeader(h *Header, marker uint16, data []byte) error {
	if len(data) < 6 {
		return common.ErrInvalidSOF
	}
	h.Marker = marker
	h.Precision = int(data[0])
	h.Height = int(binary.BigEndian.Uint16(data[1:]))
	h.Width = int(binary.BigEndian.Uint16(data[3:]))
	h.Components = nil
	n := int(data[5])
	if len(data) != 6+3*n {
		return common.ErrInvalidSOF
	}
	if n != 1 && n != 3 {
		return fmt.Errorf("%w: %d", common.ErrInvalidComponents, n)
	}
	if h.Width == 0 || h.Height == 0 {
		// a zero height needs DNL, which DICOM streams do not use
		return fmt.Errorf("%w: %dx%d", common.ErrInvalidDimensions, h.Width, h.Height)
	}
	for i := 0; i < n; i++ {
		c := ComponentInfo{
			ID:    int(data[6+3*i]),
			H:     int(data[7+3*i] >> 4),
			V:     int(data[7+3*i] & 0x0F),
			Quant: int(data[8+3*i]),
		}
		if c.H < 1 || c.H > 4 || c.V < 1 || c.V > 4 || c.Quant > 3 {
			return common.ErrInvalidSOF
		}
		for _, prev := range h.Components {
			if prev.ID == c.ID {
				return fmt.Errorf("%w: repeated component id %d", common.ErrInvalidSOF, c.ID)
			}
		}
		h.Components = append(h.Components, c)
	}
	return nil
}

// applyAPP records the colour signalling of JFIF and Adobe segments
func (h *Header) applyAPP(marker uint16, data []byte) {
	switch marker {
	case common.MarkerAPP0:
		if len(data) >= 5 && bytes.Equal(data[:5], []byte("JFIF\x00")) {
			h.JFIF = true
		}
	case common.MarkerAPP14:
		if len(data) >= 12 && bytes.Equal(data[:5], []byte("Adobe")) {
			h.Adobe = true
			h.AdobeTransform = int(data[11])
		}
	}
}

// Probe reads the marker segments up to the first scan and returns the
// frame header. Fragments are read in order as one stream.
func Probe(fragments ...[]byte) (*Header, error) {
	readers := make([]io.Reader, len(fragments))
	for i, f := range fragments {
		readers[i] = bytes.NewReader(f)
	}
	r := standard.NewReader(io.MultiReader(readers...))

	m, err := r.ReadMarker()
	if err != nil || m != common.MarkerSOI {
		return nil, common.ErrInvalidSOI
	}

	hdr := &Header{}
	for {
		m, err := r.ReadMarker()
		if err != nil {
			return nil, probeError(err)
		}
		if !common.HasLength(m) {
			return nil, fmt.Errorf("%w: %s before first scan", common.ErrInvalidMarker, common.MarkerName(m))
		}
		data, err := r.ReadSegment()
		if err != nil {
			return nil, probeError(err)
		}

		switch {
		case common.IsSOF(m):
			if hdr.Marker != 0 {
				return nil, fmt.Errorf("%w: multiple frame headers", common.ErrInvalidSOF)
			}
			if err := parseFrameHeader(hdr, m, data); err != nil {
				return nil, err
			}
		case m == common.MarkerAPP0 || m == common.MarkerAPP14:
			hdr.applyAPP(m, data)
		case m == common.MarkerDRI:
			if hdr.RestartInterval, err = parseRestartInterval(data); err != nil {
				return nil, err
			}
		case m == common.MarkerSOS:
			if hdr.Marker == 0 {
				return nil, fmt.Errorf("%w: scan before frame header", common.ErrInvalidSOS)
			}
			return hdr, nil
		}
	}
}

func parseRestartInterval(data []byte) (int, error) {
	if len(data) != 2 {
		return 0, fmt.Errorf("%w: DRI length %d", common.ErrInvalidData, len(data))
	}
	return int(binary.BigEndian.Uint16(data)), nil
}

func probeError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, common.ErrUnexpectedEOF) {
		return common.ErrUnexpectedEOF
	}
	return err
}

// BitDepth returns the sample precision declared by the frame header
func BitDepth(fragments ...[]byte) (int, error) {
	h, err := Probe(fragments...)
	if err != nil {
		return 0, err
	}
	return h.Precision, nil
}
