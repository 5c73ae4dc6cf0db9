package jpegtest

// Split cuts a stream into n fragments of nearly equal size. DICOM
// fragments have even length, so every piece but the last is rounded up
// to an even size.
func Split(stream []byte, n int) [][]byte {
	if n <= 1 || len(stream) < 2*n {
		return [][]byte{stream}
	}
	size := (len(stream) + n - 1) / n
	size += size & 1
	var out [][]byte
	for len(stream) > size {
		out = append(out, stream[:size])
		stream = stream[size:]
	}
	return append(out, stream)
}

// SplitAt cuts a stream at the given ascending offsets
func SplitAt(stream []byte, offsets ...int) [][]byte {
	var out [][]byte
	prev := 0
	for _, o := range offsets {
		out = append(out, stream[prev:o])
		prev = o
	}
	return append(out, stream[prev:])
}

// Truncate keeps the first keep bytes of a stream
func Truncate(stream []byte, keep int) []byte {
	return append([]byte(nil), stream[:keep]...)
}

// Gradient returns a smooth interleaved test pattern with values below
// 2^precision; components are offset from each other
func Gradient(width, height, components, precision int) []uint16 {
	maxVal := 1<<uint(precision) - 1
	out := make([]uint16, width*height*components)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			for c := 0; c < components; c++ {
				v := (x*maxVal/max(width-1, 1) + y*maxVal/max(height-1, 1) + c*maxVal/4) / 2
				out[(y*width+x)*components+c] = uint16(min(v, maxVal))
			}
		}
	}
	return out
}

// Flat returns a raster with every sample set to v
func Flat(width, height, components int, v uint16) []uint16 {
	out := make([]uint16, width*height*components)
	for i := range out {
		out[i] = v
	}
	return out
}

// Bytes returns the samples as a raster of bytesPerSample (1 or 2,
// little endian) bytes each
func Bytes(samples []uint16, bytesPerSample int) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		if bytesPerSample == 1 {
			out[i] = byte(s)
			continue
		}
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}
