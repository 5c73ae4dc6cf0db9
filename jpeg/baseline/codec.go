// Package baseline registers the JPEG Baseline (Process 1) decoder with the
// go-dicom codec registry.
package baseline

import (
	"context"
	"fmt"

	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	"github.com/cocosip/go-dicom/pkg/imaging/codec"
	"github.com/cocosip/go-dicom/pkg/imaging/imagetypes"

	jcodec "github.com/cocosip/go-dicom-jpeg/codec"
	"github.com/cocosip/go-dicom-jpeg/pipeline"
)

var _ codec.Codec = (*BaselineCodec)(nil)

// BaselineCodec decodes 1.2.840.10008.1.2.4.50 pixel data
type BaselineCodec struct {
	params *pipeline.Parameters
}

// NewBaselineCodec creates a codec decoding with the given options; nil
// selects the defaults
func NewBaselineCodec(params *pipeline.Parameters) *BaselineCodec {
	if params == nil {
		params = pipeline.NewParameters()
	}
	return &BaselineCodec{params: params}
}

// Name returns the codec name
func (c *BaselineCodec) Name() string {
	return "JPEG Baseline (Process 1)"
}

// TransferSyntax returns the transfer syntax this codec handles
func (c *BaselineCodec) TransferSyntax() *transfer.Syntax {
	return transfer.JPEGBaseline8Bit
}

// GetDefaultParameters returns the default codec parameters
func (c *BaselineCodec) GetDefaultParameters() codec.Parameters {
	return c.params.Clone()
}

// Encode is not offered; this module only decompresses
func (c *BaselineCodec) Encode(oldPixelData imagetypes.PixelData, newPixelData imagetypes.PixelData, parameters codec.Parameters) error {
	return fmt.Errorf("%s: encoding: %w", c.Name(), jcodec.ErrUnsupportedFormat)
}

// Decode decodes every frame of oldPixelData into newPixelData. With partial
// images allowed, frames that fail are zero-filled and the returned error
// wraps a *jcodec.PartialImageError listing them.
func (c *BaselineCodec) Decode(oldPixelData imagetypes.PixelData, newPixelData imagetypes.PixelData, parameters codec.Parameters) error {
	if parameters == nil {
		parameters = c.params
	}
	cfg := pipeline.ConfigFromParameters(parameters)
	uid := c.TransferSyntax().UID().UID()
	if _, err := pipeline.DecodePixelData(context.Background(), uid, oldPixelData, newPixelData, cfg); err != nil {
		return fmt.Errorf("JPEG Baseline decode failed: %w", err)
	}
	return nil
}

// RegisterBaselineCodec registers the codec with the global registry
func RegisterBaselineCodec(params *pipeline.Parameters) {
	registry := codec.GetGlobalRegistry()
	registry.RegisterCodec(transfer.JPEGBaseline8Bit, NewBaselineCodec(params))
}

func init() {
	RegisterBaselineCodec(nil)
}
