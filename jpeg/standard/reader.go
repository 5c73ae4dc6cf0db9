package standard

import (
	"encoding/binary"
	"io"

	"github.com/cocosip/go-dicom-jpeg/jpeg/common"
)

// Reader provides utilities for reading JPEG marker segments
type Reader struct {
	r   io.Reader
	n   int64
	buf [2]byte
}

// NewReader creates a new JPEG reader
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Offset returns the number of bytes consumed so far
func (r *Reader) Offset() int64 {
	return r.n
}

// ReadByte reads a single byte
func (r *Reader) ReadByte() (byte, error) {
	if err := r.ReadFull(r.buf[:1]); err != nil {
		return 0, err
	}
	return r.buf[0], nil
}

// ReadUint16 reads a 16-bit big-endian value
func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.ReadFull(r.buf[:2]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(r.buf[:2]), nil
}

// ReadMarker reads the next JPEG marker, skipping fill bytes
func (r *Reader) ReadMarker() (uint16, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if b != 0xFF {
		return 0, common.ErrInvalidMarker
	}

	for {
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != 0xFF {
			break
		}
	}

	// 0x00 is a stuffed byte (escaped 0xFF in data), not a marker
	if b == 0x00 {
		return 0, common.ErrInvalidMarker
	}

	return uint16(0xFF00) | uint16(b), nil
}

// ReadSegment reads a segment with its length
// Returns the segment data (without the length field)
func (r *Reader) ReadSegment() ([]byte, error) {
	length, err := r.ReadUint16()
	if err != nil {
		return nil, err
	}

	// Length includes itself (2 bytes)
	if length < 2 {
		return nil, common.ErrInvalidData
	}

	data := make([]byte, length-2)
	if err := r.ReadFull(data); err != nil {
		return nil, err
	}
	return data, nil
}

// ReadFull reads exactly len(buf) bytes
func (r *Reader) ReadFull(buf []byte) error {
	n, err := io.ReadFull(r.r, buf)
	r.n += int64(n)
	if err == io.ErrUnexpectedEOF {
		return common.ErrUnexpectedEOF
	}
	return err
}
