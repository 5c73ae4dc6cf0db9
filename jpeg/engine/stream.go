package engine

import (
	"encoding/binary"
	"fmt"

	"github.com/cocosip/go-dicom-jpeg/jpeg/common"
)

// sink receives the segments of a frame as soon as they are complete
type sink interface {
	acceptPrecision(p int) bool
	frameHeader(h *Header) error
	tables(marker uint16, data []byte) error
	scan(header, entropy []byte) error
}

type phase int

const (
	phaseSOI phase = iota
	phaseMarker
	phaseEntropy
	phaseDone
)

// stream splits the accumulated bytes of one frame into marker segments and
// entropy-coded scans and drives the frame state machine
type stream struct {
	buf   []byte
	pos   int
	phase phase
	state State
	err   error

	hdr       Header
	sofSeen   bool
	scans     int
	scanHdr   []byte
	scanStart int
	scanPos   int
	eoiEnd    int
}

func (s *stream) reset() {
	buf := s.buf[:0]
	*s = stream{buf: buf}
}

// State returns the current state
func (s *stream) State() State { return s.state }

// Offset returns the number of compressed bytes received for the frame
func (s *stream) Offset() int64 { return int64(len(s.buf)) }

// Scans returns the number of scans started so far
func (s *stream) Scans() int { return s.scans }

// Header returns the frame header once SOF was parsed
func (s *stream) Header() *Header {
	if !s.sofSeen {
		return nil
	}
	h := s.hdr
	h.Components = append([]ComponentInfo(nil), s.hdr.Components...)
	return &h
}

// image returns the bytes from SOI through EOI
func (s *stream) image() []byte {
	return s.buf[:s.eoiEnd]
}

func (s *stream) feed(k sink, p []byte) (State, error) {
	if s.state == Failed {
		return Failed, s.err
	}
	s.buf = append(s.buf, p...)
	for {
		progressed, err := s.step(k)
		if err != nil {
			s.state = Failed
			s.err = err
			return Failed, err
		}
		if !progressed {
			return s.state, nil
		}
	}
}

func (s *stream) step(k sink) (bool, error) {
	switch s.phase {
	case phaseSOI:
		if len(s.buf) < 2 {
			return false, nil
		}
		if s.buf[0] != 0xFF || s.buf[1] != 0xD8 {
			return false, fmt.Errorf("%w: stream starts with %02X %02X", common.ErrInvalidSOI, s.buf[0], s.buf[1])
		}
		s.pos = 2
		s.phase = phaseMarker
		return true, nil

	case phaseMarker:
		return s.nextSegment(k)

	case phaseEntropy:
		i := s.scanPos
		for i+1 < len(s.buf) {
			if s.buf[i] != 0xFF {
				i++
				continue
			}
			b := s.buf[i+1]
			if b == 0x00 || common.IsRST(0xFF00|uint16(b)) {
				i += 2
				continue
			}
			if b == 0xFF {
				i++
				continue
			}
			if err := k.scan(s.scanHdr, s.buf[s.scanStart:i]); err != nil {
				return false, fmt.Errorf("scan %d: %w", s.scans, err)
			}
			s.pos = i
			s.phase = phaseMarker
			return true, nil
		}
		s.scanPos = i
		return false, nil

	case phaseDone:
		for ; s.pos < len(s.buf); s.pos++ {
			if s.buf[s.pos] != 0x00 {
				return false, fmt.Errorf("%w: byte %02X at offset %d after EOI", common.ErrTrailingData, s.buf[s.pos], s.pos)
			}
		}
		return false, nil
	}
	return false, nil
}

func (s *stream) nextSegment(k sink) (bool, error) {
	if s.pos >= len(s.buf) {
		return false, nil
	}
	if s.buf[s.pos] != 0xFF {
		return false, fmt.Errorf("%w: byte %02X at offset %d", common.ErrInvalidMarker, s.buf[s.pos], s.pos)
	}
	i := s.pos + 1
	for i < len(s.buf) && s.buf[i] == 0xFF {
		i++
	}
	if i >= len(s.buf) {
		return false, nil
	}
	if s.buf[i] == 0x00 {
		return false, fmt.Errorf("%w: stuffed byte at offset %d", common.ErrInvalidMarker, i)
	}
	m := 0xFF00 | uint16(s.buf[i])
	start := i + 1

	if !common.HasLength(m) {
		if m != common.MarkerEOI {
			return false, fmt.Errorf("%w: unexpected %s at offset %d", common.ErrInvalidMarker, common.MarkerName(m), i-1)
		}
		if s.scans == 0 {
			return false, fmt.Errorf("%w: no scan before EOI", common.ErrInvalidEOI)
		}
		s.pos = start
		s.eoiEnd = start
		s.phase = phaseDone
		s.state = FrameComplete
		return true, nil
	}

	if start+2 > len(s.buf) {
		return false, nil
	}
	length := int(binary.BigEndian.Uint16(s.buf[start:]))
	if length < 2 {
		return false, fmt.Errorf("%w: %s length %d", common.ErrInvalidData, common.MarkerName(m), length)
	}
	end := start + length
	if end > len(s.buf) {
		return false, nil
	}
	data := s.buf[start+2 : end]
	s.pos = end

	switch {
	case common.IsSOF(m):
		if s.sofSeen {
			return false, fmt.Errorf("%w: multiple frame headers", common.ErrInvalidSOF)
		}
		if !common.IsDCTHuffman(m) {
			return false, fmt.Errorf("%w: %s", common.ErrUnsupportedFormat, common.MarkerName(m))
		}
		if err := parseFrameHeader(&s.hdr, m, data); err != nil {
			return false, err
		}
		if !k.acceptPrecision(s.hdr.Precision) {
			return false, fmt.Errorf("%w: %d-bit %s stream", common.ErrInvalidPrecision, s.hdr.Precision, common.MarkerName(m))
		}
		s.sofSeen = true
		if err := k.frameHeader(&s.hdr); err != nil {
			return false, err
		}

	case m == common.MarkerSOS:
		if !s.sofSeen {
			return false, fmt.Errorf("%w: scan before frame header", common.ErrInvalidSOS)
		}
		if len(data) < 1 || len(data) != 4+2*int(data[0]) {
			return false, fmt.Errorf("%w: length %d", common.ErrInvalidSOS, len(data))
		}
		s.scanHdr = append(s.scanHdr[:0], data...)
		s.scanStart = end
		s.scanPos = end
		s.scans++
		s.phase = phaseEntropy
		s.state = ScanInProgress

	case m == common.MarkerDHT || m == common.MarkerDQT:
		if err := k.tables(m, data); err != nil {
			return false, err
		}

	case m == common.MarkerDRI:
		ri, err := parseRestartInterval(data)
		if err != nil {
			return false, err
		}
		s.hdr.RestartInterval = ri
		if err := k.tables(m, data); err != nil {
			return false, err
		}

	case m == common.MarkerAPP0 || m == common.MarkerAPP14:
		s.hdr.applyAPP(m, data)

	case m == common.MarkerDNL || m == common.MarkerDAC:
		return false, fmt.Errorf("%w: %s", common.ErrUnsupportedFormat, common.MarkerName(m))
	}
	return true, nil
}
