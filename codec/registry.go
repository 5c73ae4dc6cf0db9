package codec

import (
	"fmt"
	"sort"
)

// Process identifies the JPEG coding process of a variant.
type Process int

const (
	ProcessBaseline Process = iota
	ProcessExtended
	ProcessProgressive
	ProcessJPEG2000
)

func (p Process) String() string {
	switch p {
	case ProcessBaseline:
		return "baseline"
	case ProcessExtended:
		return "extended"
	case ProcessProgressive:
		return "progressive"
	case ProcessJPEG2000:
		return "jpeg2000"
	default:
		return fmt.Sprintf("Process(%d)", int(p))
	}
}

// PrecisionBoundary is the largest sample depth served by the 8-bit engine.
const PrecisionBoundary = 8

// Variant describes the static capabilities of one coding variant.
type Variant struct {
	UID          string
	Name         string
	Process      Process
	Lossy        bool
	Volumetric   bool // JPEG 2000 class
	MaxPrecision int
}

// Transfer syntax UIDs of the registered variants.
const (
	UIDJPEGBaseline     = "1.2.840.10008.1.2.4.50"
	UIDJPEGExtended     = "1.2.840.10008.1.2.4.51"
	UIDJPEGProgressive  = "1.2.840.10008.1.2.4.55"
	UIDJPEG2000Lossless = "1.2.840.10008.1.2.4.90"
	UIDJPEG2000         = "1.2.840.10008.1.2.4.91"
)

// variants is built once and never modified, so lookups need no locking.
var variants = func() map[string]*Variant {
	list := []*Variant{
		{UID: UIDJPEGBaseline, Name: "jpeg-baseline", Process: ProcessBaseline, Lossy: true, MaxPrecision: 8},
		{UID: UIDJPEGExtended, Name: "jpeg-extended", Process: ProcessExtended, Lossy: true, MaxPrecision: 12},
		{UID: UIDJPEGProgressive, Name: "jpeg-progressive", Process: ProcessProgressive, Lossy: true, MaxPrecision: 12},
		{UID: UIDJPEG2000Lossless, Name: "jpeg2000-lossless", Process: ProcessJPEG2000, Volumetric: true, MaxPrecision: 16},
		{UID: UIDJPEG2000, Name: "jpeg2000", Process: ProcessJPEG2000, Lossy: true, Volumetric: true, MaxPrecision: 16},
	}
	m := make(map[string]*Variant, 2*len(list))
	for _, v := range list {
		m[v.UID] = v
		m[v.Name] = v
	}
	return m
}()

// Lookup returns the variant registered under a transfer syntax UID or name.
func Lookup(uidOrName string) (Variant, error) {
	v, ok := variants[uidOrName]
	if !ok {
		return Variant{}, fmt.Errorf("%w: %q", ErrUnsupportedCodingVariant, uidOrName)
	}
	return *v, nil
}

// List returns all registered variants ordered by UID.
func List() []Variant {
	out := make([]Variant, 0, len(variants)/2)
	for key, v := range variants {
		if key == v.UID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out
}

// Decodable reports whether the JPEG engines in this module handle the variant.
func (v Variant) Decodable() bool {
	return !v.Volumetric
}

// SelectsHighPrecision reports whether samples of the given depth need the
// high precision engine.
func (v Variant) SelectsHighPrecision(bitsPerSample int) bool {
	return bitsPerSample > PrecisionBoundary
}
