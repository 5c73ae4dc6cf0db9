package common

import "math"

// dctCos[u][x] = C(u)/2 * cos((2x+1)uπ/16)
var dctCos = func() (t [8][8]float64) {
	for u := 0; u < 8; u++ {
		c := 0.5
		if u == 0 {
			c = 0.5 / math.Sqrt2
		}
		for x := 0; x < 8; x++ {
			t[u][x] = c * math.Cos(float64(2*x+1)*float64(u)*math.Pi/16)
		}
	}
	return t
}()

// DCT performs the forward Discrete Cosine Transform on an 8x8 block of
// samples with the given precision. Samples are level shifted by
// 2^(precision-1); coefficients are returned in natural order.
func DCT(input []uint16, stride int, precision int, coef *[64]float64) {
	shift := float64(int(1) << uint(precision-1))
	var tmp [64]float64

	// rows
	for y := 0; y < 8; y++ {
		var row [8]float64
		for x := 0; x < 8; x++ {
			row[x] = float64(input[y*stride+x]) - shift
		}
		for u := 0; u < 8; u++ {
			var s float64
			for x := 0; x < 8; x++ {
				s += dctCos[u][x] * row[x]
			}
			tmp[y*8+u] = s
		}
	}

	// columns
	for u := 0; u < 8; u++ {
		for v := 0; v < 8; v++ {
			var s float64
			for y := 0; y < 8; y++ {
				s += dctCos[v][y] * tmp[y*8+u]
			}
			coef[v*8+u] = s
		}
	}
}
