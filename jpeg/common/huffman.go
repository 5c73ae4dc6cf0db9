package common

// lookupBits is the code length resolved with a single table access
const lookupBits = 9

// HuffmanTable represents a Huffman coding table as carried by a DHT segment
type HuffmanTable struct {
	// Number of codes of each length (1-16 bits)
	Bits [16]int
	// Values for each code, in order of code length
	Values []byte

	// Canonical code ranges indexed by code length (1-16)
	minCode [17]int32
	maxCode [17]int32
	valPtr  [17]int32
	// (length << 8) | value for every code up to lookupBits long; 0 if none
	lookup [1 << lookupBits]uint16
}

// Build derives the canonical codes from Bits and Values
func (h *HuffmanTable) Build() error {
	total := 0
	for _, n := range h.Bits {
		total += n
	}
	if total == 0 || total > 256 || total > len(h.Values) {
		return ErrInvalidDHT
	}

	h.lookup = [1 << lookupBits]uint16{}
	code := int32(0)
	p := 0
	for l := 1; l <= 16; l++ {
		n := h.Bits[l-1]
		h.valPtr[l] = int32(p)
		h.minCode[l] = code
		h.maxCode[l] = -1
		for i := 0; i < n; i++ {
			if code >= int32(1)<<l {
				return ErrInvalidDHT
			}
			if l <= lookupBits {
				shift := lookupBits - l
				start := int(code) << shift
				for j := 0; j < 1<<shift; j++ {
					h.lookup[start+j] = uint16(l)<<8 | uint16(h.Values[p])
				}
			}
			code++
			p++
		}
		if n > 0 {
			h.maxCode[l] = code - 1
		}
		code <<= 1
	}
	return nil
}

// ParseHuffmanTables reads every table of a DHT segment payload and calls
// store for each one; class is 0 for DC and 1 for AC tables.
func ParseHuffmanTables(data []byte, store func(class, id int, table *HuffmanTable)) error {
	for len(data) > 0 {
		if len(data) < 17 {
			return ErrInvalidDHT
		}
		class := int(data[0] >> 4)
		id := int(data[0] & 0x0F)
		if class > 1 || id > 3 {
			return ErrInvalidDHT
		}
		table := &HuffmanTable{}
		total := 0
		for i := 0; i < 16; i++ {
			table.Bits[i] = int(data[1+i])
			total += table.Bits[i]
		}
		if len(data) < 17+total {
			return ErrInvalidDHT
		}
		table.Values = append([]byte(nil), data[17:17+total]...)
		if err := table.Build(); err != nil {
			return err
		}
		store(class, id, table)
		data = data[17+total:]
	}
	return nil
}

// BitReader reads Huffman coded bits from one entropy-coded scan. Stuffed
// zero bytes are removed; at a marker the reader stops and yields zero bits.
type BitReader struct {
	data    []byte
	pos     int
	acc     uint64 // MSB aligned
	nBits   int
	marker  bool
	padding int // zero bytes supplied past the end of the data
	overrun bool
	nextRST int
}

// NewBitReader creates a reader over the entropy-coded bytes of a scan
func NewBitReader(data []byte) *BitReader {
	return &BitReader{data: data}
}

func (r *BitReader) fill() {
	for r.nBits <= 56 {
		var b byte
		switch {
		case r.marker || r.pos >= len(r.data):
			r.padding++
		case r.data[r.pos] != 0xFF:
			b = r.data[r.pos]
			r.pos++
		case r.pos+1 < len(r.data) && r.data[r.pos+1] == 0x00:
			b = 0xFF
			r.pos += 2
		case r.pos+1 < len(r.data) && r.data[r.pos+1] == 0xFF:
			// fill byte ahead of a marker
			r.pos++
			continue
		default:
			r.marker = true
			r.padding++
		}
		r.acc |= uint64(b) << uint(56-r.nBits)
		r.nBits += 8
	}
}

// ReadBits reads n (at most 16) bits as an unsigned integer
func (r *BitReader) ReadBits(n int) uint32 {
	if n == 0 {
		return 0
	}
	if r.nBits < n {
		r.fill()
	}
	v := uint32(r.acc >> uint(64-n))
	r.acc <<= uint(n)
	r.nBits -= n
	return v
}

// ReadBit reads a single bit
func (r *BitReader) ReadBit() uint32 {
	return r.ReadBits(1)
}

// Decode decodes the next Huffman symbol
func (r *BitReader) Decode(table *HuffmanTable) (byte, error) {
	if r.nBits < 16 {
		r.fill()
	}
	if e := table.lookup[r.acc>>(64-lookupBits)]; e != 0 {
		n := int(e >> 8)
		r.acc <<= uint(n)
		r.nBits -= n
		return byte(e), nil
	}
	for l := lookupBits + 1; l <= 16; l++ {
		code := int32(r.acc >> uint(64-l))
		if code <= table.maxCode[l] {
			r.acc <<= uint(l)
			r.nBits -= l
			return table.Values[table.valPtr[l]+code-table.minCode[l]], nil
		}
	}
	return 0, ErrHuffmanDecode
}

// ReceiveExtend reads an ssss-bit magnitude and sign-extends it (F.2.2.1)
func (r *BitReader) ReceiveExtend(ssss int) int32 {
	if ssss == 0 {
		return 0
	}
	if ssss == 16 {
		// lossless only: difference of 32768 carries no extra bits
		return 32768
	}
	v := int32(r.ReadBits(ssss))
	if v < int32(1)<<uint(ssss-1) {
		v += (int32(-1) << uint(ssss)) + 1
	}
	return v
}

// Restart discards the bits left in the current byte and consumes the
// expected RSTn marker
func (r *BitReader) Restart() error {
	r.overrun = r.Overrun()
	r.padding = 0
	r.acc = 0
	r.nBits = 0
	r.marker = false
	for r.pos+1 < len(r.data) && r.data[r.pos] == 0xFF && r.data[r.pos+1] == 0xFF {
		r.pos++
	}
	if r.pos+1 >= len(r.data) || r.data[r.pos] != 0xFF {
		return ErrInvalidRestart
	}
	m := 0xFF00 | uint16(r.data[r.pos+1])
	if m != uint16(MarkerRST0+r.nextRST) {
		return ErrInvalidRestart
	}
	r.pos += 2
	r.nextRST = (r.nextRST + 1) & 7
	return nil
}

// Overrun reports whether the scan needed more bits than it contained
func (r *BitReader) Overrun() bool {
	return r.overrun || r.padding*8 > r.nBits
}
