package common

// ZigZag maps the zig-zag scan index to the natural (row-major) index of an 8x8 block
var ZigZag = [64]int{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// Standard JPEG quantization tables (Annex K), natural order

// DefaultLuminanceQuantTable is the standard luminance quantization table
var DefaultLuminanceQuantTable = [64]int32{
	16, 11, 10, 16, 24, 40, 51, 61,
	12, 12, 14, 19, 26, 58, 60, 55,
	14, 13, 16, 24, 40, 57, 69, 56,
	14, 17, 22, 29, 51, 87, 80, 62,
	18, 22, 37, 56, 68, 109, 103, 77,
	24, 35, 55, 64, 81, 104, 113, 92,
	49, 64, 78, 87, 103, 121, 120, 101,
	72, 92, 95, 98, 112, 100, 103, 99,
}

// DefaultChrominanceQuantTable is the standard chrominance quantization table
var DefaultChrominanceQuantTable = [64]int32{
	17, 18, 24, 47, 99, 99, 99, 99,
	18, 21, 26, 66, 99, 99, 99, 99,
	24, 26, 56, 99, 99, 99, 99, 99,
	47, 66, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
	99, 99, 99, 99, 99, 99, 99, 99,
}

// ScaleQuantTable scales a quantization table by quality factor (1-100)
func ScaleQuantTable(baseTable [64]int32, quality int) [64]int32 {
	var result [64]int32

	if quality < 1 {
		quality = 1
	}
	if quality > 100 {
		quality = 100
	}

	// Quality 50 = no scaling
	var scale int
	if quality < 50 {
		scale = 5000 / quality
	} else {
		scale = 200 - quality*2
	}

	for i := 0; i < 64; i++ {
		result[i] = Clamp((baseTable[i]*int32(scale)+50)/100, 1, 255)
	}

	return result
}

// FixedLengthHuffmanTable assigns every symbol 0..n-1 a code of the same
// length. Such tables cover all DC categories and AC run/size pairs of
// 12-bit data, which the Annex K tables do not. A DHT segment counts codes
// per length in one byte, so symbols past the 255th get one bit more.
func FixedLengthHuffmanTable(n, length int) *HuffmanTable {
	table := &HuffmanTable{Values: make([]byte, n)}
	table.Bits[length-1] = min(n, 255)
	table.Bits[length] = n - table.Bits[length-1]
	for i := range table.Values {
		table.Values[i] = byte(i)
	}
	_ = table.Build() // valid for n < 1<<length
	return table
}

// DivCeil returns ceil(a / b) for positive b
func DivCeil(a, b int) int {
	return (a + b - 1) / b
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
