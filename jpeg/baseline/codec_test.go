package baseline

import (
	"testing"

	"github.com/cocosip/go-dicom/pkg/dicom/transfer"
	"github.com/cocosip/go-dicom/pkg/imaging/codec"
	"github.com/cocosip/go-dicom/pkg/imaging/imagetypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	codecHelpers "github.com/cocosip/go-dicom-jpeg/codec"
	"github.com/cocosip/go-dicom-jpeg/jpeg/jpegtest"
	"github.com/cocosip/go-dicom-jpeg/pipeline"
)

func TestBaselineCodecInterface(t *testing.T) {
	c := NewBaselineCodec(nil)
	var _ codec.Codec = c

	assert.NotEmpty(t, c.Name())
	require.NotNil(t, c.TransferSyntax())
	assert.Equal(t, codecHelpers.UIDJPEGBaseline, c.TransferSyntax().UID().UID())

	params := c.GetDefaultParameters()
	assert.Equal(t, true, params.GetParameter(pipeline.ParamTrustDeclaredColorTransform))
	typed, ok := params.(*pipeline.Parameters)
	require.True(t, ok, "default parameters are %T", params)
	assert.NoError(t, typed.Validate())
}

func TestBaselineCodecDefaultParametersAreCopies(t *testing.T) {
	c := NewBaselineCodec(pipeline.NewParameters())

	first := c.GetDefaultParameters()
	first.SetParameter("custom", 7)
	first.SetParameter(pipeline.ParamPreferPlanarOutput, true)

	second := c.GetDefaultParameters()
	assert.Nil(t, second.GetParameter("custom"), "extra parameters must not leak into the defaults")
	assert.Equal(t, false, second.GetParameter(pipeline.ParamPreferPlanarOutput))
	assert.Equal(t, 7, first.GetParameter("custom"))
}

func TestBaselineCodecPartialImage(t *testing.T) {
	width, height := 24, 16
	var streams [][]byte
	for _, v := range []uint16{40, 200} {
		s, err := jpegtest.Encode(jpegtest.Flat(width, height, 1, v), width, height, 1, jpegtest.Options{})
		require.NoError(t, err)
		streams = append(streams, s)
	}

	frameInfo := &imagetypes.FrameInfo{
		Width:                     uint16(width),
		Height:                    uint16(height),
		BitsAllocated:             8,
		BitsStored:                8,
		HighBit:                   7,
		SamplesPerPixel:           1,
		PhotometricInterpretation: "MONOCHROME2",
	}

	tests := []struct {
		name       string
		frames     [][]byte
		invalid    []int
		validValue byte
	}{
		{"second frame truncated", [][]byte{streams[0], jpegtest.Truncate(streams[1], len(streams[1])-10)}, []int{1}, 40},
		{"first frame truncated", [][]byte{jpegtest.Truncate(streams[0], len(streams[0])-10), streams[1]}, []int{0}, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := codecHelpers.NewEncapsulatedTestPixelData(frameInfo, tt.frames...)
			dst := codecHelpers.NewTestPixelData(&imagetypes.FrameInfo{})
			params := pipeline.NewParameters().WithPartialImages(true)

			err := NewBaselineCodec(nil).Decode(src, dst, params)
			require.Error(t, err)
			assert.ErrorIs(t, err, codecHelpers.ErrPartialImage)
			var partial *codecHelpers.PartialImageError
			require.ErrorAs(t, err, &partial)
			assert.Equal(t, tt.invalid, partial.InvalidFrames)
			require.Len(t, partial.Deviations, 1)
			assert.Equal(t, codecHelpers.KindTruncatedFragmentStream, partial.Deviations[0].Kind)

			require.Equal(t, 2, dst.FrameCount())
			for i := 0; i < 2; i++ {
				got, err := dst.GetFrame(i)
				require.NoError(t, err)
				if i == tt.invalid[0] {
					assert.Equal(t, make([]byte, width*height), got, "failed frame is zero-filled")
					continue
				}
				assert.InDelta(t, int(tt.validValue), int(got[0]), 2)
			}
			assert.EqualValues(t, height, dst.GetFrameInfo().Height)
			assert.Equal(t, "MONOCHROME2", dst.GetFrameInfo().PhotometricInterpretation)
		})
	}

	// without the option the first failure aborts the call
	src := codecHelpers.NewEncapsulatedTestPixelData(frameInfo, streams[0], jpegtest.Truncate(streams[1], len(streams[1])-10))
	dst := codecHelpers.NewTestPixelData(&imagetypes.FrameInfo{})
	err := NewBaselineCodec(nil).Decode(src, dst, nil)
	assert.ErrorIs(t, err, codecHelpers.ErrTruncatedFragmentStream)
	assert.NotErrorIs(t, err, codecHelpers.ErrPartialImage)
	assert.Zero(t, dst.FrameCount())
}

func TestBaselineCodecDecodeFrames(t *testing.T) {
	width, height := 64, 48
	frames := [][]uint16{
		jpegtest.Gradient(width, height, 1, 8),
		jpegtest.Flat(width, height, 1, 90),
	}
	var streams [][]byte
	for _, f := range frames {
		s, err := jpegtest.Encode(f, width, height, 1, jpegtest.Options{})
		require.NoError(t, err)
		streams = append(streams, s)
	}

	frameInfo := &imagetypes.FrameInfo{
		Width:                     uint16(width),
		Height:                    uint16(height),
		BitsAllocated:             8,
		BitsStored:                8,
		HighBit:                   7,
		SamplesPerPixel:           1,
		PhotometricInterpretation: "MONOCHROME2",
	}
	src := codecHelpers.NewEncapsulatedTestPixelData(frameInfo, streams...)
	dst := codecHelpers.NewTestPixelData(&imagetypes.FrameInfo{})

	require.NoError(t, NewBaselineCodec(nil).Decode(src, dst, nil))
	require.Equal(t, len(frames), dst.FrameCount())

	for i, want := range frames {
		got, err := dst.GetFrame(i)
		require.NoError(t, err)
		require.Len(t, got, width*height)
		maxDiff := 0
		for j, w := range want {
			maxDiff = max(maxDiff, abs(int(got[j])-int(w)))
		}
		t.Logf("Frame %d max difference: %d", i, maxDiff)
		assert.LessOrEqual(t, maxDiff, 4)
	}
	assert.EqualValues(t, width, dst.GetFrameInfo().Width)
	assert.Equal(t, "MONOCHROME2", dst.GetFrameInfo().PhotometricInterpretation)
}

func TestBaselineCodecColor(t *testing.T) {
	width, height := 32, 32
	samples := jpegtest.Flat(width, height, 3, 0)
	for i := 0; i < len(samples); i += 3 {
		samples[i], samples[i+1], samples[i+2] = 200, 100, 50
	}
	stream, err := jpegtest.Encode(samples, width, height, 3, jpegtest.Options{ColorTransform: true, Subsample: true})
	require.NoError(t, err)

	frameInfo := &imagetypes.FrameInfo{
		Width:                     uint16(width),
		Height:                    uint16(height),
		BitsAllocated:             8,
		BitsStored:                8,
		HighBit:                   7,
		SamplesPerPixel:           3,
		PhotometricInterpretation: "YBR_FULL_422",
	}
	src := codecHelpers.NewEncapsulatedTestPixelData(frameInfo, stream)
	dst := codecHelpers.NewTestPixelData(&imagetypes.FrameInfo{})
	params := pipeline.NewParameters().WithPlanarOutput(true)

	require.NoError(t, NewBaselineCodec(nil).Decode(src, dst, params))
	got, err := dst.GetFrame(0)
	require.NoError(t, err)
	require.Len(t, got, width*height*3)

	plane := width * height
	for c, want := range []int{200, 100, 50} {
		assert.InDelta(t, want, int(got[c*plane]), 4, "plane %d", c)
		assert.InDelta(t, want, int(got[c*plane+plane-1]), 4, "plane %d", c)
	}
	assert.Equal(t, "RGB", dst.GetFrameInfo().PhotometricInterpretation)
	assert.EqualValues(t, 1, dst.GetFrameInfo().PlanarConfiguration)
}

func TestBaselineCodecRejectsWideSamples(t *testing.T) {
	width, height := 16, 16
	stream, err := jpegtest.Encode(jpegtest.Flat(width, height, 1, 1000), width, height, 1, jpegtest.Options{Precision: 12})
	require.NoError(t, err)

	frameInfo := &imagetypes.FrameInfo{
		Width:                     uint16(width),
		Height:                    uint16(height),
		BitsAllocated:             16,
		BitsStored:                12,
		HighBit:                   11,
		SamplesPerPixel:           1,
		PhotometricInterpretation: "MONOCHROME2",
	}
	src := codecHelpers.NewEncapsulatedTestPixelData(frameInfo, stream)
	dst := codecHelpers.NewTestPixelData(&imagetypes.FrameInfo{})

	err = NewBaselineCodec(nil).Decode(src, dst, nil)
	assert.ErrorIs(t, err, codecHelpers.ErrInvalidBitDepth)
	assert.Zero(t, dst.FrameCount())
}

func TestBaselineCodecEncodeUnsupported(t *testing.T) {
	src := codecHelpers.NewTestPixelData(&imagetypes.FrameInfo{})
	dst := codecHelpers.NewTestPixelData(&imagetypes.FrameInfo{})
	err := NewBaselineCodec(nil).Encode(src, dst, nil)
	assert.ErrorIs(t, err, codecHelpers.ErrUnsupportedFormat)
}

func TestBaselineCodecRegistry(t *testing.T) {
	RegisterBaselineCodec(nil)

	registry := codec.GetGlobalRegistry()
	retrievedCodec, exists := registry.GetCodec(transfer.JPEGBaseline8Bit)
	require.True(t, exists, "codec not found in registry")
	require.NotNil(t, retrievedCodec)
	t.Logf("Retrieved codec name: %s", retrievedCodec.Name())
	assert.Equal(t, NewBaselineCodec(nil).Name(), retrievedCodec.Name())
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
