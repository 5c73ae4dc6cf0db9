package codec

import "strings"

// Photometric interpretations handled by the JPEG decoders.
const (
	PhotometricMonochrome1   = "MONOCHROME1"
	PhotometricMonochrome2   = "MONOCHROME2"
	PhotometricRGB           = "RGB"
	PhotometricYBRFull       = "YBR_FULL"
	PhotometricYBRFull422    = "YBR_FULL_422"
	PhotometricYBRPartial420 = "YBR_PARTIAL_420"
	PhotometricYBRPartial422 = "YBR_PARTIAL_422"
	PhotometricPaletteColor  = "PALETTE COLOR"
)

// NormalizePhotometric trims the padding DICOM allows on code strings.
func NormalizePhotometric(pi string) string {
	return strings.ToUpper(strings.TrimSpace(strings.TrimRight(pi, "\x00")))
}

// IsYBR reports whether the interpretation declares YCbCr samples.
func IsYBR(pi string) bool {
	return strings.HasPrefix(NormalizePhotometric(pi), "YBR_")
}

// IsMonochrome reports whether the interpretation is a grayscale one.
func IsMonochrome(pi string) bool {
	switch NormalizePhotometric(pi) {
	case PhotometricMonochrome1, PhotometricMonochrome2:
		return true
	}
	return false
}
