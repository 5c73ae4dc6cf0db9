package common

import "errors"

// Common errors
var (
	ErrInvalidMarker     = errors.New("invalid JPEG marker")
	ErrInvalidSOI        = errors.New("missing SOI marker")
	ErrInvalidEOI        = errors.New("missing EOI marker")
	ErrInvalidSOF        = errors.New("invalid Start of Frame")
	ErrInvalidDHT        = errors.New("invalid Huffman table")
	ErrInvalidDQT        = errors.New("invalid Quantization table")
	ErrInvalidSOS        = errors.New("invalid Start of Scan")
	ErrInvalidRestart    = errors.New("missing or out of order restart marker")
	ErrUnsupportedFormat = errors.New("unsupported JPEG format")
	ErrInvalidData       = errors.New("invalid JPEG data")
	ErrUnexpectedEOF     = errors.New("unexpected end of file")
	ErrTrailingData      = errors.New("data after EOI marker")
	ErrInvalidDimensions = errors.New("invalid image dimensions")
	ErrInvalidComponents = errors.New("invalid number of components")
	ErrInvalidPrecision  = errors.New("invalid precision")
	ErrInvalidQuality    = errors.New("invalid quality factor")
	ErrHuffmanDecode     = errors.New("Huffman decode error")
)
