// Package pipeline turns the encapsulated JPEG pixel data of a DICOM image
// into an uncompressed raster. It selects a decompression engine, feeds it
// the fragments of every frame and reconciles the declared pixel
// description with what the engine produced.
package pipeline

import (
	"fmt"

	"github.com/cocosip/go-dicom-jpeg/codec"
	"github.com/cocosip/go-dicom-jpeg/jpeg/engine"
)

// SelectEngine returns a fresh engine for an image of the given variant and
// compressed sample depth. Depths up to codec.PrecisionBoundary go to the
// 8-bit engine, wider ones to the high precision engine.
func SelectEngine(v *codec.Variant, cfg *codec.Config, bitsPerSample int, colorTransform bool) (engine.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if v == nil {
		return nil, codec.NewDecodeError(codec.KindUnsupportedCodingVariant, -1, "no coding variant", nil)
	}
	if !v.Decodable() {
		return nil, codec.NewDecodeError(codec.KindUnsupportedCodingVariant, -1,
			fmt.Sprintf("%s (%s) has no JPEG engine", v.Name, v.UID), nil)
	}
	if bitsPerSample < 1 || bitsPerSample > v.MaxPrecision {
		return nil, codec.NewDecodeError(codec.KindInvalidBitDepth, -1,
			fmt.Sprintf("%d bits per sample, %s allows 1..%d", bitsPerSample, v.Name, v.MaxPrecision), nil)
	}

	opts := engine.Options{ColorTransform: colorTransform}
	if v.SelectsHighPrecision(bitsPerSample) {
		return engine.NewHighPrecision(opts), nil
	}
	return engine.NewLowPrecision(opts), nil
}
