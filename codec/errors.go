package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter is returned when decoding parameters are invalid
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidDimensions is returned when rows or columns are not positive
	ErrInvalidDimensions = errors.New("invalid image dimensions")

	// ErrUnsupportedFormat is returned for operations this module does not offer, such as encoding
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrUnsupportedCodingVariant is returned for transfer syntaxes without a decoder
	ErrUnsupportedCodingVariant = errors.New("unsupported coding variant")

	// ErrInvalidBitDepth is returned when the sample depth is outside what the variant allows
	ErrInvalidBitDepth = errors.New("invalid bit depth")

	// ErrTruncatedFragmentStream is returned when fragments run out before a frame is complete
	ErrTruncatedFragmentStream = errors.New("truncated fragment stream")

	// ErrIrreconcilablePixelDescription is returned when decoded samples cannot match the declared layout
	ErrIrreconcilablePixelDescription = errors.New("irreconcilable pixel description")

	// ErrEngineInternalFailure is returned when the decompression engine rejects the stream
	ErrEngineInternalFailure = errors.New("decompression engine failure")

	// ErrPartialImage is returned alongside output whose failed frames were zero-filled
	ErrPartialImage = errors.New("partially decoded image")
)

// ErrorKind classifies decode failures.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindUnsupportedCodingVariant
	KindInvalidBitDepth
	KindTruncatedFragmentStream
	KindIrreconcilablePixelDescription
	KindEngineInternalFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindUnsupportedCodingVariant:
		return "unsupported coding variant"
	case KindInvalidBitDepth:
		return "invalid bit depth"
	case KindTruncatedFragmentStream:
		return "truncated fragment stream"
	case KindIrreconcilablePixelDescription:
		return "irreconcilable pixel description"
	case KindEngineInternalFailure:
		return "engine internal failure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Sentinel returns the package error matching the kind.
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindUnsupportedCodingVariant:
		return ErrUnsupportedCodingVariant
	case KindInvalidBitDepth:
		return ErrInvalidBitDepth
	case KindTruncatedFragmentStream:
		return ErrTruncatedFragmentStream
	case KindIrreconcilablePixelDescription:
		return ErrIrreconcilablePixelDescription
	case KindEngineInternalFailure:
		return ErrEngineInternalFailure
	default:
		return nil
	}
}

// DecodeError carries the location of a decode failure. Index fields are -1
// when they do not apply. The pipeline fills ImageIndex from the image it
// was asked to decode.
type DecodeError struct {
	ImageIndex int
	FrameIndex int
	Offset     int64 // byte offset within the frame's compressed stream
	Kind       ErrorKind
	Detail     string
	Err        error
}

// NewDecodeError builds a DecodeError for the given frame; image index and
// offset are left unset.
func NewDecodeError(kind ErrorKind, frame int, detail string, err error) *DecodeError {
	return &DecodeError{
		ImageIndex: -1,
		FrameIndex: frame,
		Offset:     -1,
		Kind:       kind,
		Detail:     detail,
		Err:        err,
	}
}

func (e *DecodeError) Error() string {
	msg := e.Kind.String()
	if e.FrameIndex >= 0 {
		msg = fmt.Sprintf("frame %d: %s", e.FrameIndex, msg)
	}
	if e.ImageIndex >= 0 {
		msg = fmt.Sprintf("image %d: %s", e.ImageIndex, msg)
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" at offset %d", e.Offset)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error kind.
func (e *DecodeError) Is(target error) bool {
	s := e.Kind.Sentinel()
	return s != nil && s == target
}

// KindOf extracts the error kind from err, or KindNone.
func KindOf(err error) ErrorKind {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind
	}
	for k := KindUnsupportedCodingVariant; k <= KindEngineInternalFailure; k++ {
		if errors.Is(err, k.Sentinel()) {
			return k
		}
	}
	return KindNone
}

// PartialImageError reports the frames that were zero-filled because they
// failed to decode. It matches ErrPartialImage.
type PartialImageError struct {
	InvalidFrames []int
	Deviations    []Deviation
}

func (e *PartialImageError) Error() string {
	return fmt.Sprintf("%s: frames %v zero-filled", ErrPartialImage, e.InvalidFrames)
}

// Is matches ErrPartialImage.
func (e *PartialImageError) Is(target error) bool {
	return target == ErrPartialImage
}
