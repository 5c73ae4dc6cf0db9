package common

import "encoding/binary"

// SampleRange returns the smallest and largest sample value of a raster
// holding bytesPerSample (1 or 2, little-endian) bytes per sample.
func SampleRange(data []byte, bytesPerSample int) (minVal, maxVal uint32) {
	if len(data) == 0 {
		return 0, 0
	}

	if bytesPerSample == 1 {
		minVal, maxVal = 255, 0
		for _, b := range data {
			v := uint32(b)
			if v < minVal {
				minVal = v
			}
			if v > maxVal {
				maxVal = v
			}
		}
		return minVal, maxVal
	}

	minVal, maxVal = 65535, 0
	for i := 0; i+1 < len(data); i += 2 {
		v := uint32(binary.LittleEndian.Uint16(data[i:]))
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	return minVal, maxVal
}

// BitsRequired returns the number of bits needed to store v unsigned
func BitsRequired(v uint32) int {
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

// WidenSamples copies 8-bit samples into a 16-bit little-endian buffer
func WidenSamples(dst, src []byte) {
	for i, b := range src {
		dst[2*i] = b
		dst[2*i+1] = 0
	}
}
