package engine

import "github.com/cocosip/go-dicom-jpeg/jpeg/common"

// Fixed point (16 fractional bits) ITU-R BT.601 full range coefficients
const (
	crToR = 91881  // 1.40200
	cbToG = 22554  // 0.34414
	crToG = 46802  // 0.71414
	cbToB = 116130 // 1.77200
	half  = 1 << 15
)

// ycbcrToRGB converts one full range YCbCr triple at the given precision
func ycbcrToRGB(y, cb, cr int32, precision int) (r, g, b int32) {
	center := int32(1) << uint(precision-1)
	maxVal := int32(1)<<uint(precision) - 1
	cb -= center
	cr -= center
	r = y + (crToR*cr+half)>>16
	g = y + (-cbToG*cb-crToG*cr+half)>>16
	b = y + (cbToB*cb+half)>>16
	return common.Clamp(r, 0, maxVal), common.Clamp(g, 0, maxVal), common.Clamp(b, 0, maxVal)
}
