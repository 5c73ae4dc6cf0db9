package pipeline

import (
	"bytes"
	"context"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocosip/go-dicom-jpeg/codec"
	"github.com/cocosip/go-dicom-jpeg/jpeg/engine"
	"github.com/cocosip/go-dicom-jpeg/jpeg/jpegtest"
)

func descriptor(width, height, spp, bitsStored int, pi string) codec.FrameDescriptor {
	allocated := 8
	if bitsStored > 8 {
		allocated = 16
	}
	return codec.FrameDescriptor{
		Rows:                      height,
		Columns:                   width,
		SamplesPerPixel:           spp,
		BitsAllocated:             allocated,
		BitsStored:                bitsStored,
		HighBit:                   bitsStored - 1,
		PhotometricInterpretation: pi,
	}
}

func encode(t *testing.T, samples []uint16, w, h, comps int, opts jpegtest.Options) []byte {
	t.Helper()
	stream, err := jpegtest.Encode(samples, w, h, comps, opts)
	require.NoError(t, err)
	return stream
}

func single(fragments ...[]byte) [][][]byte {
	return [][][]byte{fragments}
}

func TestSelectEngine(t *testing.T) {
	extended, err := codec.Lookup(codec.UIDJPEGExtended)
	require.NoError(t, err)
	baseline, err := codec.Lookup(codec.UIDJPEGBaseline)
	require.NoError(t, err)
	j2k, err := codec.Lookup(codec.UIDJPEG2000)
	require.NoError(t, err)
	cfg := codec.DefaultConfig()

	tests := []struct {
		name      string
		variant   *codec.Variant
		bits      int
		precision int
		kind      codec.ErrorKind
	}{
		{"8 bits low", &extended, 8, 8, codec.KindNone},
		{"9 bits high", &extended, 9, 12, codec.KindNone},
		{"1 bit low", &baseline, 1, 8, codec.KindNone},
		{"12 bits high", &extended, 12, 12, codec.KindNone},
		{"baseline 9 bits", &baseline, 9, 0, codec.KindInvalidBitDepth},
		{"extended 13 bits", &extended, 13, 0, codec.KindInvalidBitDepth},
		{"zero bits", &extended, 0, 0, codec.KindInvalidBitDepth},
		{"jpeg 2000", &j2k, 8, 0, codec.KindUnsupportedCodingVariant},
		{"no variant", nil, 8, 0, codec.KindUnsupportedCodingVariant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, err := SelectEngine(tt.variant, cfg, tt.bits, false)
			if tt.kind != codec.KindNone {
				require.Error(t, err)
				assert.Equal(t, tt.kind, codec.KindOf(err))
				assert.Nil(t, eng)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.precision, eng.Precision())
			assert.Equal(t, engine.AwaitingData, eng.State())
		})
	}

	_, err = SelectEngine(&extended, nil, 8, false)
	assert.ErrorIs(t, err, codec.ErrInvalidParameter)
}

func TestSelectEngineInstancesAreIndependent(t *testing.T) {
	v, err := codec.Lookup(codec.UIDJPEGExtended)
	require.NoError(t, err)
	a, err := SelectEngine(&v, codec.DefaultConfig(), 12, false)
	require.NoError(t, err)
	b, err := SelectEngine(&v, codec.DefaultConfig(), 12, false)
	require.NoError(t, err)

	_, err = a.Feed([]byte{0xFF, 0xD8})
	require.NoError(t, err)
	assert.Equal(t, int64(2), a.Offset())
	assert.Equal(t, int64(0), b.Offset())
}

func TestDecodeGrayscale512(t *testing.T) {
	w, h := 512, 512
	stream := encode(t, jpegtest.Gradient(w, h, 1, 8), w, h, 1, jpegtest.Options{})
	img := &Image{
		TransferSyntaxUID: codec.UIDJPEGBaseline,
		Descriptor:        descriptor(w, h, 1, 8, codec.PhotometricMonochrome2),
		Frames:            single(jpegtest.Split(stream, 5)...),
	}

	res, err := Decode(context.Background(), img, codec.DefaultConfig())
	require.NoError(t, err)
	assert.Len(t, res.Raster, 262144)
	assert.Empty(t, res.Deviations)
	assert.Equal(t, []bool{true}, res.FrameValid)
	assert.Equal(t, []int{1}, res.Scans)
	assert.Equal(t, img.Descriptor, res.Frames[0])
	assert.NotEmpty(t, res.CallID)
}

func TestDecodeLosslessRoundTrip(t *testing.T) {
	w, h := 48, 40
	stream := encode(t, jpegtest.Gradient(w, h, 1, 8), w, h, 1, jpegtest.Options{Quality: 90})
	img := &Image{
		TransferSyntaxUID: codec.UIDJPEGBaseline,
		Descriptor:        descriptor(w, h, 1, 8, codec.PhotometricMonochrome2),
		Frames:            single(stream),
	}
	res, err := Decode(context.Background(), img, codec.DefaultConfig())
	require.NoError(t, err)

	// the decoded raster is the new original: a lossless pass must keep it exactly
	lossless, err := jpegtest.EncodeLossless(res.Raster, w, h, 1, 8)
	require.NoError(t, err)
	back, bw, bh, comps, precision, err := jpegtest.DecodeLossless(lossless)
	require.NoError(t, err)
	assert.Equal(t, []int{w, h, 1, 8}, []int{bw, bh, comps, precision})
	assert.True(t, bytes.Equal(res.Raster, back))
}

func TestDecodeFragmentOrder(t *testing.T) {
	w, h := 64, 64
	stream := encode(t, jpegtest.Gradient(w, h, 1, 8), w, h, 1, jpegtest.Options{})
	parts := jpegtest.Split(stream, 4)
	require.Len(t, parts, 4)

	decode := func(fragments ...[]byte) (*Result, error) {
		return Decode(context.Background(), &Image{
			TransferSyntaxUID: codec.UIDJPEGBaseline,
			Descriptor:        descriptor(w, h, 1, 8, codec.PhotometricMonochrome2),
			Frames:            single(fragments...),
		}, codec.DefaultConfig())
	}

	ref, err := decode(parts...)
	require.NoError(t, err)

	_, err = decode(parts[1], parts[0], parts[2], parts[3])
	require.Error(t, err)
	assert.ErrorIs(t, err, codec.ErrEngineInternalFailure)

	res, err := decode(parts[0], parts[2], parts[1], parts[3])
	if err == nil {
		assert.NotEqual(t, ref.Raster, res.Raster, "reordered fragments must not yield the same image")
	} else {
		t.Logf("Reordered fragments rejected: %v", err)
	}
}

func TestDecodeProgressiveScans(t *testing.T) {
	tests := []struct {
		name  string
		bits  int
		opts  jpegtest.Options
		scans int
	}{
		{"8-bit", 8, jpegtest.Options{Progressive: true}, 3},
		{"12-bit successive approximation", 12, jpegtest.Options{Precision: 12, Progressive: true, SuccessiveApproximation: true}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := 40, 32
			stream := encode(t, jpegtest.Gradient(w, h, 1, tt.bits), w, h, 1, tt.opts)
			img := &Image{
				TransferSyntaxUID: codec.UIDJPEGProgressive,
				Descriptor:        descriptor(w, h, 1, tt.bits, codec.PhotometricMonochrome2),
				Frames:            single(jpegtest.Split(stream, 7)...),
			}
			res, err := Decode(context.Background(), img, codec.DefaultConfig())
			require.NoError(t, err)
			assert.Equal(t, []int{tt.scans}, res.Scans, "all scans belong to one frame")
			assert.Len(t, res.Raster, img.Descriptor.FrameSize())
		})
	}
}

func TestDecodeIrreconcilableComponents(t *testing.T) {
	w, h := 16, 16
	stream := encode(t, jpegtest.Flat(w, h, 3, 80), w, h, 3, jpegtest.Options{ColorTransform: true})
	img := &Image{
		TransferSyntaxUID: codec.UIDJPEGBaseline,
		Descriptor:        descriptor(w, h, 1, 8, codec.PhotometricMonochrome2),
		Frames:            single(stream),
	}

	for _, partial := range []bool{false, true} {
		cfg := codec.DefaultConfig()
		cfg.AllowPartialImageOnFrameFailure = partial
		res, err := Decode(context.Background(), img, cfg)
		assert.ErrorIs(t, err, codec.ErrIrreconcilablePixelDescription)
		assert.Equal(t, codec.KindIrreconcilablePixelDescription, codec.KindOf(err))
		assert.Nil(t, res)
	}
}

func TestDecodeTruncatedSecondFrame(t *testing.T) {
	w, h := 32, 32
	first := encode(t, jpegtest.Gradient(w, h, 1, 8), w, h, 1, jpegtest.Options{})
	second := encode(t, jpegtest.Flat(w, h, 1, 77), w, h, 1, jpegtest.Options{})
	img := &Image{
		TransferSyntaxUID: codec.UIDJPEGBaseline,
		Descriptor:        descriptor(w, h, 1, 8, codec.PhotometricMonochrome2),
		// cut inside the entropy coded data of the second frame
		Frames: [][][]byte{{first}, jpegtest.Split(jpegtest.Truncate(second, len(second)-10), 2)},
	}

	t.Run("strict", func(t *testing.T) {
		res, err := Decode(context.Background(), img, codec.DefaultConfig())
		require.Error(t, err)
		assert.Nil(t, res)
		assert.ErrorIs(t, err, codec.ErrTruncatedFragmentStream)

		var de *codec.DecodeError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, 1, de.FrameIndex)
		assert.Equal(t, int64(len(second)-10), de.Offset)
	})

	t.Run("partial", func(t *testing.T) {
		cfg := codec.DefaultConfig()
		cfg.AllowPartialImageOnFrameFailure = true
		res, err := Decode(context.Background(), img, cfg)
		require.NoError(t, err)

		assert.Equal(t, []bool{true, false}, res.FrameValid)
		require.Len(t, res.Deviations, 1)
		assert.Equal(t, 1, res.Deviations[0].FrameIndex)
		assert.Equal(t, codec.KindTruncatedFragmentStream, res.Deviations[0].Kind)

		size := img.Descriptor.FrameSize()
		require.Len(t, res.Raster, 2*size)
		assert.NotEqual(t, make([]byte, size), res.Raster[:size])
		assert.Equal(t, make([]byte, size), res.Raster[size:])
	})
}

func TestDecodeErrorCarriesImageIndex(t *testing.T) {
	w, h := 16, 16
	stream := encode(t, jpegtest.Flat(w, h, 1, 60), w, h, 1, jpegtest.Options{})
	img := &Image{
		TransferSyntaxUID: codec.UIDJPEGBaseline,
		Descriptor:        descriptor(w, h, 1, 8, codec.PhotometricMonochrome2),
		Index:             4,
		Frames:            [][][]byte{{stream}, {jpegtest.Truncate(stream, len(stream)-10)}},
	}

	_, err := Decode(context.Background(), img, codec.DefaultConfig())
	var de *codec.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 4, de.ImageIndex)
	assert.Equal(t, 1, de.FrameIndex)
	assert.True(t, strings.HasPrefix(err.Error(), "image 4: frame 1: "), err.Error())

	_, err = DecodeFrame(context.Background(), img, 1, codec.DefaultConfig())
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 4, de.ImageIndex)

	img.TransferSyntaxUID = "1.2.3"
	_, err = Decode(context.Background(), img, codec.DefaultConfig())
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 4, de.ImageIndex)
	assert.Equal(t, -1, de.FrameIndex)
}

func TestDecodePartialAllFramesFailed(t *testing.T) {
	cfg := codec.DefaultConfig()
	cfg.AllowPartialImageOnFrameFailure = true
	img := &Image{
		TransferSyntaxUID: codec.UIDJPEGBaseline,
		Descriptor:        descriptor(8, 8, 1, 8, codec.PhotometricMonochrome2),
		Frames:            [][][]byte{nil, nil},
	}
	res, err := Decode(context.Background(), img, cfg)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, codec.ErrTruncatedFragmentStream)
}

func TestDecodeColorTransformPolicy(t *testing.T) {
	w, h := 16, 16
	samples := make([]uint16, 0, w*h*3)
	for i := 0; i < w*h; i++ {
		samples = append(samples, 200, 100, 50)
	}
	// a JFIF stream holding YCbCr while the dataset claims RGB
	stream := encode(t, samples, w, h, 3, jpegtest.Options{ColorTransform: true})

	tests := []struct {
		name  string
		trust bool
		want  []float64
	}{
		{"trust declared", true, []float64{124, 86, 182}},
		{"trust stream", false, []float64{200, 100, 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := codec.DefaultConfig()
			cfg.TrustDeclaredColorTransform = tt.trust
			img := &Image{
				TransferSyntaxUID: codec.UIDJPEGBaseline,
				Descriptor:        descriptor(w, h, 3, 8, codec.PhotometricRGB),
				Frames:            single(stream),
			}
			res, err := Decode(context.Background(), img, cfg)
			require.NoError(t, err)

			require.Len(t, res.Deviations, 1)
			assert.Equal(t, -1, res.Deviations[0].FrameIndex)
			assert.Equal(t, "ColorTransform", res.Deviations[0].Field)
			assert.Equal(t, codec.PhotometricRGB, res.Frames[0].PhotometricInterpretation)
			for c, want := range tt.want {
				assert.InDelta(t, want, float64(res.Raster[c]), 4, "component %d", c)
			}
		})
	}
}

func TestDecodeColorCorrections(t *testing.T) {
	w, h := 24, 16
	samples := make([]uint16, 0, w*h*3)
	for i := 0; i < w*h; i++ {
		samples = append(samples, 30, 140, 220)
	}

	tests := []struct {
		name   string
		opts   jpegtest.Options
		pi     string
		planar bool
		wantPI string
		fields []string
	}{
		{"ybr full 422 transformed", jpegtest.Options{ColorTransform: true, Subsample: true}, codec.PhotometricYBRFull422, false, codec.PhotometricRGB, []string{"PhotometricInterpretation"}},
		{"ybr full transformed planar", jpegtest.Options{ColorTransform: true}, codec.PhotometricYBRFull, true, codec.PhotometricRGB, []string{"PhotometricInterpretation", "PlanarConfiguration"}},
		{"rgb planar", jpegtest.Options{}, codec.PhotometricRGB, true, codec.PhotometricRGB, []string{"PlanarConfiguration"}},
		{"rgb interleaved", jpegtest.Options{}, codec.PhotometricRGB, false, codec.PhotometricRGB, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := codec.DefaultConfig()
			cfg.PreferPlanarOutput = tt.planar
			img := &Image{
				TransferSyntaxUID: codec.UIDJPEGBaseline,
				Descriptor:        descriptor(w, h, 3, 8, tt.pi),
				Frames:            single(encode(t, samples, w, h, 3, tt.opts)),
			}
			res, err := Decode(context.Background(), img, cfg)
			require.NoError(t, err)

			var fields []string
			for _, d := range res.Deviations {
				fields = append(fields, d.Field)
			}
			assert.Equal(t, tt.fields, fields)
			assert.Equal(t, tt.wantPI, res.Frames[0].PhotometricInterpretation)

			plane := w * h
			for c, want := range []float64{30, 140, 220} {
				idx := c
				if tt.planar {
					idx = c * plane
				}
				assert.InDelta(t, want, float64(res.Raster[idx]), 4, "component %d", c)
			}
		})
	}
}

func TestDecodeBitsStoredCorrection(t *testing.T) {
	w, h := 32, 24
	tests := []struct {
		name       string
		samples    []uint16
		bitsStored int
		highBit    int
		wantStored int
		fields     []string
	}{
		{"samples exceed declared", jpegtest.Gradient(w, h, 1, 12), 10, 9, 12, []string{"BitsStored", "HighBit"}},
		{"samples fit declared", jpegtest.Flat(w, h, 1, 100), 10, 9, 10, nil},
		{"declared wider than stream", jpegtest.Flat(w, h, 1, 100), 16, 15, 12, []string{"BitsStored", "HighBit"}},
		{"high bit only", jpegtest.Flat(w, h, 1, 100), 12, 15, 12, []string{"HighBit"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := descriptor(w, h, 1, 12, codec.PhotometricMonochrome2)
			desc.BitsStored = tt.bitsStored
			desc.HighBit = tt.highBit
			img := &Image{
				TransferSyntaxUID: codec.UIDJPEGExtended,
				Descriptor:        desc,
				Frames:            single(encode(t, tt.samples, w, h, 1, jpegtest.Options{Precision: 12})),
			}
			res, err := Decode(context.Background(), img, codec.DefaultConfig())
			require.NoError(t, err)

			var fields []string
			for _, d := range res.Deviations {
				fields = append(fields, d.Field)
			}
			assert.Equal(t, tt.fields, fields)
			assert.Equal(t, tt.wantStored, res.Frames[0].BitsStored)
			assert.Equal(t, tt.wantStored-1, res.Frames[0].HighBit)
		})
	}
}

func TestDecodeWidensEightBitSamples(t *testing.T) {
	w, h := 16, 8
	stream := encode(t, jpegtest.Flat(w, h, 1, 180), w, h, 1, jpegtest.Options{})
	desc := descriptor(w, h, 1, 8, codec.PhotometricMonochrome2)
	desc.BitsAllocated = 16
	img := &Image{
		TransferSyntaxUID: codec.UIDJPEGExtended,
		Descriptor:        desc,
		Frames:            single(stream),
	}
	res, err := Decode(context.Background(), img, codec.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Raster, w*h*2)
	for i := 0; i < w*h; i++ {
		assert.InDelta(t, 180, float64(binary.LittleEndian.Uint16(res.Raster[2*i:])), 2)
	}
}

func TestDecodeFrame(t *testing.T) {
	w, h := 16, 16
	var frames [][][]byte
	for _, v := range []uint16{20, 120, 220} {
		frames = append(frames, [][]byte{encode(t, jpegtest.Flat(w, h, 1, v), w, h, 1, jpegtest.Options{})})
	}
	img := &Image{
		TransferSyntaxUID: codec.UIDJPEGBaseline,
		Descriptor:        descriptor(w, h, 1, 8, codec.PhotometricMonochrome2),
		Frames:            frames,
	}

	res, err := DecodeFrame(context.Background(), img, 1, codec.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, res.Raster, w*h)
	assert.InDelta(t, 120, float64(res.Raster[0]), 2)

	_, err = DecodeFrame(context.Background(), img, 3, codec.DefaultConfig())
	assert.ErrorIs(t, err, codec.ErrInvalidParameter)

	img.Frames[2] = [][]byte{jpegtest.Truncate(img.Frames[2][0], 40)}
	_, err = DecodeFrame(context.Background(), img, 2, codec.DefaultConfig())
	var de *codec.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 2, de.FrameIndex, "frame indices stay absolute")
}

func TestDecodeCallerRaster(t *testing.T) {
	w, h := 8, 8
	stream := encode(t, jpegtest.Flat(w, h, 1, 60), w, h, 1, jpegtest.Options{})
	img := &Image{
		TransferSyntaxUID: codec.UIDJPEGBaseline,
		Descriptor:        descriptor(w, h, 1, 8, codec.PhotometricMonochrome2),
		Frames:            single(stream),
		Raster:            make([]byte, w*h+10),
	}
	res, err := Decode(context.Background(), img, codec.DefaultConfig())
	require.NoError(t, err)
	assert.Len(t, res.Raster, w*h)
	assert.Same(t, &img.Raster[0], &res.Raster[0])

	img.Raster = make([]byte, w*h-1)
	assert.Panics(t, func() {
		_, _ = Decode(context.Background(), img, codec.DefaultConfig())
	})
}

func TestDecodeConfigurationErrors(t *testing.T) {
	w, h := 8, 8
	stream := encode(t, jpegtest.Flat(w, h, 1, 60), w, h, 1, jpegtest.Options{})
	valid := Image{
		TransferSyntaxUID: codec.UIDJPEGBaseline,
		Descriptor:        descriptor(w, h, 1, 8, codec.PhotometricMonochrome2),
		Frames:            single(stream),
	}

	_, err := Decode(context.Background(), &valid, nil)
	assert.ErrorIs(t, err, codec.ErrInvalidParameter)

	_, err = Decode(context.Background(), nil, codec.DefaultConfig())
	assert.ErrorIs(t, err, codec.ErrInvalidParameter)

	img := valid
	img.TransferSyntaxUID = "1.2.840.10008.1.2.4.57"
	_, err = Decode(context.Background(), &img, codec.DefaultConfig())
	assert.ErrorIs(t, err, codec.ErrUnsupportedCodingVariant)

	img = valid
	img.TransferSyntaxUID = codec.UIDJPEG2000Lossless
	_, err = Decode(context.Background(), &img, codec.DefaultConfig())
	assert.ErrorIs(t, err, codec.ErrUnsupportedCodingVariant)

	img = valid
	img.Descriptor.Rows = 0
	_, err = Decode(context.Background(), &img, codec.DefaultConfig())
	assert.ErrorIs(t, err, codec.ErrInvalidDimensions)

	img = valid
	img.Frames = nil
	_, err = Decode(context.Background(), &img, codec.DefaultConfig())
	assert.ErrorIs(t, err, codec.ErrInvalidParameter)

	img = valid
	img.CompressedBitDepth = 12
	_, err = Decode(context.Background(), &img, codec.DefaultConfig())
	assert.ErrorIs(t, err, codec.ErrInvalidBitDepth)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Decode(ctx, &valid, codec.DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecodeStreamFailures(t *testing.T) {
	w, h := 16, 16
	stream := encode(t, jpegtest.Flat(w, h, 1, 60), w, h, 1, jpegtest.Options{})
	wide := encode(t, jpegtest.Flat(w, h, 1, 600), w, h, 1, jpegtest.Options{Precision: 12})
	lossless, err := jpegtest.EncodeLossless(make([]byte, w*h), w, h, 1, 8)
	require.NoError(t, err)

	tests := []struct {
		name      string
		uid       string
		bits      int
		fragments [][]byte
		kind      codec.ErrorKind
	}{
		{"trailing garbage", codec.UIDJPEGBaseline, 0, [][]byte{stream, {0x00, 0x12}}, codec.KindEngineInternalFailure},
		{"zero padding", codec.UIDJPEGBaseline, 0, [][]byte{stream, {0x00, 0x00}}, codec.KindNone},
		{"declared 8 bits, 12-bit stream", codec.UIDJPEGExtended, 8, [][]byte{wide}, codec.KindInvalidBitDepth},
		{"lossless stream", codec.UIDJPEGBaseline, 0, [][]byte{lossless}, codec.KindUnsupportedCodingVariant},
		{"empty frame", codec.UIDJPEGBaseline, 0, nil, codec.KindTruncatedFragmentStream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := descriptor(w, h, 1, 8, codec.PhotometricMonochrome2)
			desc.BitsAllocated = 16
			img := &Image{
				TransferSyntaxUID:  tt.uid,
				Descriptor:         desc,
				Frames:             [][][]byte{tt.fragments},
				CompressedBitDepth: tt.bits,
			}
			_, err := Decode(context.Background(), img, codec.DefaultConfig())
			if tt.kind == codec.KindNone {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.kind, codec.KindOf(err), "%v", err)
		})
	}
}
