package standard

import (
	"fmt"

	"github.com/cocosip/go-dicom-jpeg/jpeg/common"
)

func writeSymbol(enc *HuffmanEncoder, codes []HuffmanCode, symbol int) error {
	if symbol < 0 || symbol >= len(codes) || codes[symbol].Len == 0 {
		return fmt.Errorf("%w: no code for symbol 0x%02X", common.ErrInvalidDHT, symbol)
	}
	code := codes[symbol]
	return enc.WriteBits(uint32(code.Code), code.Len)
}

// EncodeDC encodes a DC coefficient difference
func EncodeDC(enc *HuffmanEncoder, diff int, dcCodes []HuffmanCode) error {
	cat, bits := EncodeCategory(diff)
	if err := writeSymbol(enc, dcCodes, cat); err != nil {
		return err
	}
	return enc.WriteBits(bits, cat)
}

// EncodeAC encodes the AC coefficients of the spectral band [ss, se] of a
// quantized block given in natural order. A band ending in zeros is closed
// with EOB.
func EncodeAC(enc *HuffmanEncoder, block *[64]int32, ss, se int, acCodes []HuffmanCode) error {
	runLength := 0

	for k := ss; k <= se; k++ {
		coef := int(block[common.ZigZag[k]])

		if coef == 0 {
			runLength++
			continue
		}

		// ZRL for every 16 zeros
		for runLength >= 16 {
			if err := writeSymbol(enc, acCodes, 0xF0); err != nil {
				return err
			}
			runLength -= 16
		}

		cat, bits := EncodeCategory(coef)
		if err := writeSymbol(enc, acCodes, runLength<<4|cat); err != nil {
			return err
		}
		if err := enc.WriteBits(bits, cat); err != nil {
			return err
		}

		runLength = 0
	}

	if runLength > 0 {
		return writeSymbol(enc, acCodes, 0x00)
	}
	return nil
}
