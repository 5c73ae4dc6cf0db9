package codec

import "fmt"

// FrameDescriptor describes the pixel layout of one frame as declared by the
// container and, after reconciliation, as actually produced by the decoder.
type FrameDescriptor struct {
	Rows                      int
	Columns                   int
	SamplesPerPixel           int
	BitsAllocated             int
	BitsStored                int
	HighBit                   int
	PixelRepresentation       int    // 0 = unsigned, 1 = two's complement
	PlanarConfiguration       int    // 0 = interleaved, 1 = planar
	PhotometricInterpretation string // e.g. MONOCHROME2, RGB, YBR_FULL_422
}

// BytesPerSample returns the storage width of one sample in the raster.
func (d FrameDescriptor) BytesPerSample() int {
	return (d.BitsAllocated + 7) / 8
}

// FrameSize returns the number of raster bytes one frame occupies.
func (d FrameDescriptor) FrameSize() int {
	return d.Rows * d.Columns * d.SamplesPerPixel * d.BytesPerSample()
}

// Validate checks the declared description for values no decoder can honour.
func (d FrameDescriptor) Validate() error {
	if d.Rows <= 0 || d.Columns <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, d.Columns, d.Rows)
	}
	if d.SamplesPerPixel != 1 && d.SamplesPerPixel != 3 {
		return fmt.Errorf("%w: samples per pixel %d", ErrInvalidParameter, d.SamplesPerPixel)
	}
	if d.BitsAllocated != 8 && d.BitsAllocated != 16 {
		return fmt.Errorf("%w: bits allocated %d", ErrInvalidBitDepth, d.BitsAllocated)
	}
	if d.BitsStored < 1 || d.BitsStored > d.BitsAllocated {
		return fmt.Errorf("%w: bits stored %d with %d allocated", ErrInvalidBitDepth, d.BitsStored, d.BitsAllocated)
	}
	if d.PixelRepresentation != 0 && d.PixelRepresentation != 1 {
		return fmt.Errorf("%w: pixel representation %d", ErrInvalidParameter, d.PixelRepresentation)
	}
	return nil
}

// Config holds the decoder options. A Config is read-only once a decode call
// starts and may be shared between concurrent calls.
type Config struct {
	// TrustDeclaredColorTransform decides whether a colour transform is applied
	// based on the declared photometric interpretation (true) or on the
	// JFIF/Adobe markers and component ids found in the stream (false).
	TrustDeclaredColorTransform bool

	// AllowPartialImageOnFrameFailure zero-fills frames that fail to decode
	// instead of aborting the whole image.
	AllowPartialImageOnFrameFailure bool

	// PreferPlanarOutput writes colour samples plane by plane (R...G...B...).
	PreferPlanarOutput bool

	// IgnoreOffsetTable groups fragments into frames without consulting the
	// basic offset table.
	IgnoreOffsetTable bool
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() *Config {
	return &Config{
		TrustDeclaredColorTransform: true,
	}
}

// Validate rejects a missing configuration.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil decoder configuration", ErrInvalidParameter)
	}
	return nil
}

// Deviation records a difference between the declared image description and
// what was decoded, or a frame that could not be decoded in best-effort mode.
type Deviation struct {
	FrameIndex int       // -1 when the deviation applies to the whole image
	Kind       ErrorKind // KindNone for benign descriptor corrections
	Field      string    // descriptor attribute that was corrected, if any
	Declared   string
	Actual     string
	Detail     string
}

func (d Deviation) String() string {
	if d.Field != "" {
		return fmt.Sprintf("frame %d: %s declared %s, decoded %s", d.FrameIndex, d.Field, d.Declared, d.Actual)
	}
	return fmt.Sprintf("frame %d: %s: %s", d.FrameIndex, d.Kind, d.Detail)
}
