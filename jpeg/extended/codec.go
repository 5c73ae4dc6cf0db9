// Package extended registers the JPEG Extended (Process 2 & 4) decoder with the
// go-dicom codec registry.
package extended

import (
	"context"
	"fmt"

	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	"github.com/cocosip/go-dicom/pkg/imaging/codec"
	"github.com/cocosip/go-dicom/pkg/imaging/imagetypes"

	jcodec "github.com/cocosip/go-dicom-jpeg/codec"
	"github.com/cocosip/go-dicom-jpeg/pipeline"
)

var _ codec.Codec = (*ExtendedCodec)(nil)

// ExtendedCodec decodes 1.2.840.10008.1.2.4.51 pixel data
type ExtendedCodec struct {
	params *pipeline.Parameters
}

// NewExtendedCodec creates a codec decoding with the given options; nil
// selects the defaults
func NewExtendedCodec(params *pipeline.Parameters) *ExtendedCodec {
	if params == nil {
		params = pipeline.NewParameters()
	}
	return &ExtendedCodec{params: params}
}

// Name returns the codec name
func (c *ExtendedCodec) Name() string {
	return "JPEG Extended (Process 2 & 4)"
}

// TransferSyntax returns the transfer syntax this codec handles
func (c *ExtendedCodec) TransferSyntax() *transfer.Syntax {
	return transfer.JPEGExtended12Bit
}

// GetDefaultParameters returns the default codec parameters
func (c *ExtendedCodec) GetDefaultParameters() codec.Parameters {
	return c.params.Clone()
}

// Encode is not offered; this module only decompresses
func (c *ExtendedCodec) Encode(oldPixelData imagetypes.PixelData, newPixelData imagetypes.PixelData, parameters codec.Parameters) error {
	return fmt.Errorf("%s: encoding: %w", c.Name(), jcodec.ErrUnsupportedFormat)
}

// Decode decodes every frame of oldPixelData into newPixelData. With partial
// images allowed, frames that fail are zero-filled and the returned error
// wraps a *jcodec.PartialImageError listing them.
func (c *ExtendedCodec) Decode(oldPixelData imagetypes.PixelData, newPixelData imagetypes.PixelData, parameters codec.Parameters) error {
	if parameters == nil {
		parameters = c.params
	}
	cfg := pipeline.ConfigFromParameters(parameters)
	uid := c.TransferSyntax().UID().UID()
	if _, err := pipeline.DecodePixelData(context.Background(), uid, oldPixelData, newPixelData, cfg); err != nil {
		return fmt.Errorf("JPEG Extended decode failed: %w", err)
	}
	return nil
}

// RegisterExtendedCodec registers the codec with the global registry
func RegisterExtendedCodec(params *pipeline.Parameters) {
	registry := codec.GetGlobalRegistry()
	registry.RegisterCodec(transfer.JPEGExtended12Bit, NewExtendedCodec(params))
}

func init() {
	RegisterExtendedCodec(nil)
}
