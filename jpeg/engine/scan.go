package engine

import (
	"fmt"

	"github.com/cocosip/go-dicom-jpeg/jpeg/common"
)

type scanComponent struct {
	c      *component
	idx    int
	td, ta int
}

// scanParams are the spectral selection and successive approximation
// values of one scan (Ss, Se, Ah, Al)
type scanParams struct {
	ss, se int
	ah, al uint
}

// scan entropy decodes one scan into the coefficient store (B.2.3, F.2, G.2)
func (e *HighPrecision) scan(header, entropy []byte) error {
	n := int(header[0])
	if n < 1 || n > len(e.comps) {
		return fmt.Errorf("%w: %d components", common.ErrInvalidSOS, n)
	}
	scs := make([]scanComponent, n)
	totalHV := 0
	for i := 0; i < n; i++ {
		id := int(header[1+2*i])
		idx := -1
		for j := range e.comps {
			if e.comps[j].id == id {
				idx = j
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: unknown component selector %d", common.ErrInvalidSOS, id)
		}
		for _, prev := range scs[:i] {
			if prev.idx == idx {
				return fmt.Errorf("%w: repeated component selector %d", common.ErrInvalidSOS, id)
			}
		}
		c := &e.comps[idx]
		scs[i] = scanComponent{c: c, idx: idx, td: int(header[2+2*i] >> 4), ta: int(header[2+2*i] & 0x0F)}
		if scs[i].td > 3 || scs[i].ta > 3 {
			return fmt.Errorf("%w: table selector", common.ErrInvalidSOS)
		}
		totalHV += c.h * c.v
	}
	if n > 1 && totalHV > 10 {
		return fmt.Errorf("%w: sampling factors too large", common.ErrInvalidSOS)
	}

	p := scanParams{se: 63}
	if e.hdr.Progressive() {
		p.ss = int(header[1+2*n])
		p.se = int(header[2+2*n])
		p.ah = uint(header[3+2*n] >> 4)
		p.al = uint(header[3+2*n] & 0x0F)
		if (p.ss == 0 && p.se != 0) || p.ss > p.se || p.se > 63 {
			return fmt.Errorf("%w: spectral selection %d..%d", common.ErrInvalidSOS, p.ss, p.se)
		}
		if p.ss != 0 && n != 1 {
			return fmt.Errorf("%w: AC scan with %d components", common.ErrInvalidSOS, n)
		}
		if p.al > 13 || (p.ah != 0 && p.ah != p.al+1) {
			return fmt.Errorf("%w: successive approximation %d/%d", common.ErrInvalidSOS, p.ah, p.al)
		}
	}

	for _, sc := range scs {
		if !sc.c.qtSet {
			if !e.quantSet[sc.c.tq] {
				return fmt.Errorf("%w: quantization table %d undefined", common.ErrInvalidDQT, sc.c.tq)
			}
			sc.c.qt = e.quant[sc.c.tq]
			sc.c.qtSet = true
		}
		if p.ss == 0 && p.ah == 0 && e.huff[0][sc.td] == nil {
			return fmt.Errorf("%w: DC table %d undefined", common.ErrInvalidDHT, sc.td)
		}
		if p.se > 0 && e.huff[1][sc.ta] == nil {
			return fmt.Errorf("%w: AC table %d undefined", common.ErrInvalidDHT, sc.ta)
		}
	}

	d := scanDecoder{br: common.NewBitReader(entropy), p: p}
	mcu, total := 0, e.mcusX*e.mcusY
	if n == 1 {
		c := scs[0].c
		total = c.cw * c.ch
	}
	for mcu < total {
		if n == 1 {
			sc := &scs[0]
			c := sc.c
			bx, by := mcu%c.cw, mcu/c.cw
			if err := d.block(&c.coef[by*c.bw+bx], e.huff[0][sc.td], e.huff[1][sc.ta], &d.dc[0]); err != nil {
				return err
			}
		} else {
			mx, my := mcu%e.mcusX, mcu/e.mcusX
			for i := range scs {
				sc := &scs[i]
				c := sc.c
				for j := 0; j < c.h*c.v; j++ {
					bx := mx*c.h + j%c.h
					by := my*c.v + j/c.h
					if err := d.block(&c.coef[by*c.bw+bx], e.huff[0][sc.td], e.huff[1][sc.ta], &d.dc[i]); err != nil {
						return err
					}
				}
			}
		}
		mcu++
		if e.restart > 0 && mcu%e.restart == 0 && mcu < total {
			if err := d.br.Restart(); err != nil {
				return fmt.Errorf("%w: after MCU %d", err, mcu)
			}
			d.dc = [3]int32{}
			d.eobrun = 0
		}
	}
	if d.br.Overrun() {
		return fmt.Errorf("%w: entropy data exhausted", common.ErrInvalidData)
	}
	return nil
}

// scanDecoder holds the per-scan prediction and end-of-band state
type scanDecoder struct {
	br     *common.BitReader
	p      scanParams
	dc     [3]int32
	eobrun int
}

func (d *scanDecoder) block(b *[64]int32, dcTable, acTable *common.HuffmanTable, pred *int32) error {
	if d.p.ah != 0 {
		return d.refine(b, acTable)
	}

	zig := d.p.ss
	if zig == 0 {
		zig++
		s, err := d.br.Decode(dcTable)
		if err != nil {
			return err
		}
		if s > 15 {
			return fmt.Errorf("%w: DC category %d", common.ErrHuffmanDecode, s)
		}
		*pred += d.br.ReceiveExtend(int(s))
		b[0] = *pred << d.p.al
	}
	if zig > d.p.se {
		return nil
	}
	if d.eobrun > 0 {
		d.eobrun--
		return nil
	}

	for ; zig <= d.p.se; zig++ {
		rs, err := d.br.Decode(acTable)
		if err != nil {
			return err
		}
		r, s := int(rs>>4), int(rs&0x0F)
		if s != 0 {
			zig += r
			if zig > d.p.se {
				return fmt.Errorf("%w: coefficient index past %d", common.ErrHuffmanDecode, d.p.se)
			}
			b[common.ZigZag[zig]] = d.br.ReceiveExtend(s) << d.p.al
			continue
		}
		if r != 15 {
			d.eobrun = 1 << uint(r)
			if r != 0 {
				d.eobrun |= int(d.br.ReadBits(r))
			}
			d.eobrun--
			break
		}
		zig += 15
	}
	return nil
}

// refine applies one successive approximation pass (G.1.2.1, G.1.2.3)
func (d *scanDecoder) refine(b *[64]int32, acTable *common.HuffmanTable) error {
	delta := int32(1) << d.p.al
	if d.p.ss == 0 {
		if d.br.ReadBit() != 0 {
			b[0] |= delta
		}
		return nil
	}

	zig := d.p.ss
	if d.eobrun == 0 {
	loop:
		for ; zig <= d.p.se; zig++ {
			rs, err := d.br.Decode(acTable)
			if err != nil {
				return err
			}
			r, s := int(rs>>4), int(rs&0x0F)
			z := int32(0)
			switch s {
			case 0:
				if r != 15 {
					d.eobrun = 1 << uint(r)
					if r != 0 {
						d.eobrun |= int(d.br.ReadBits(r))
					}
					break loop
				}
			case 1:
				z = delta
				if d.br.ReadBit() == 0 {
					z = -z
				}
			default:
				return fmt.Errorf("%w: refinement magnitude %d", common.ErrHuffmanDecode, s)
			}

			zig = d.refineNonZeroes(b, zig, r, delta)
			if zig > d.p.se {
				return fmt.Errorf("%w: too many coefficients", common.ErrHuffmanDecode)
			}
			if z != 0 {
				b[common.ZigZag[zig]] = z
			}
		}
	}
	if d.eobrun > 0 {
		d.eobrun--
		d.refineNonZeroes(b, zig, -1, delta)
	}
	return nil
}

// refineNonZeroes adds a correction bit to every non-zero coefficient from
// zig onwards. With nz >= 0 it stops at the (nz+1)th zero coefficient.
func (d *scanDecoder) refineNonZeroes(b *[64]int32, zig, nz int, delta int32) int {
	for ; zig <= d.p.se; zig++ {
		u := common.ZigZag[zig]
		if b[u] == 0 {
			if nz == 0 {
				break
			}
			nz--
			continue
		}
		if d.br.ReadBit() == 0 {
			continue
		}
		if b[u] >= 0 {
			b[u] += delta
		} else {
			b[u] -= delta
		}
	}
	return zig
}
