package pipeline

import (
	"encoding/binary"

	"github.com/cocosip/go-dicom-jpeg/jpeg/common"
	"github.com/cocosip/go-dicom-jpeg/jpeg/engine"
)

// writeFrame stores the engine output in dst, which holds exactly one frame
// of bytesPerSample wide samples. Colour samples are reordered plane by
// plane when planar is set.
func writeFrame(dst []byte, f *engine.Frame, bytesPerSample int, planar bool) {
	src := f.Data
	reorder := planar && f.Components > 1
	if !reorder {
		switch {
		case f.SampleBytes == bytesPerSample:
			copy(dst, src)
			return
		case f.SampleBytes == 1 && bytesPerSample == 2:
			common.WidenSamples(dst, src)
			return
		}
	}

	pixels := f.Width * f.Height
	for i, n := 0, pixels*f.Components; i < n; i++ {
		var v uint16
		if f.SampleBytes == 1 {
			v = uint16(src[i])
		} else {
			v = binary.LittleEndian.Uint16(src[2*i:])
		}
		j := i
		if reorder {
			j = (i%f.Components)*pixels + i/f.Components
		}
		if bytesPerSample == 1 {
			dst[j] = byte(v)
		} else {
			binary.LittleEndian.PutUint16(dst[2*j:], v)
		}
	}
}
