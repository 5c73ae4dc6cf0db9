package common

import "math"

// IDCT performs the inverse DCT on dequantized coefficients (natural order)
// and writes level-shifted samples clamped to [0, 2^precision-1].
// Floating point keeps 12-bit coefficients free of fixed point overflow.
func IDCT(coef *[64]int32, output []uint16, stride int, precision int) {
	var tmp [64]float64

	// columns
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			var s float64
			for v := 0; v < 8; v++ {
				if c := coef[v*8+x]; c != 0 {
					s += dctCos[v][y] * float64(c)
				}
			}
			tmp[y*8+x] = s
		}
	}

	shift := float64(int(1) << uint(precision-1))
	maxVal := int32(1)<<uint(precision) - 1

	// rows
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			var s float64
			for u := 0; u < 8; u++ {
				s += dctCos[u][x] * tmp[y*8+u]
			}
			v := int32(math.Round(s + shift))
			output[y*stride+x] = uint16(Clamp(v, 0, maxVal))
		}
	}
}
