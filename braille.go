package knockout

import (
	"bufio"
	"image"
	"io"
)

// Braille represents an 8 dot braille pattern in x,y coordinates space. Eg:
//
//	+----------+
//	|(0,0)(1,0)|
//	|(0,1)(1,1)|
//	|(0,2)(1,2)|
//	|(0,3)(1,3)|
//	+----------+
type Braille [2][4]bool

// Rune maps each dot to its braille number and returns the matching
// unicode symbol.
//
//	+------+
//	|(1)(4)|
//	|(2)(5)|
//	|(3)(6)|
//	|(7)(8)|
//	+------+
//
// See https://en.wikipedia.org/wiki/Braille_Patterns#Identifying.2C_naming_and_ordering
func (b Braille) Rune() rune {
	lowEndian := [8]bool{b[0][0], b[0][1], b[0][2], b[1][0], b[1][1], b[1][2], b[0][3], b[1][3]}
	var v rune
	for i, dot := range lowEndian {
		if dot {
			v |= 1 << uint(i)
		}
	}
	return v + '\u2800'
}

func (b Braille) String() string {
	return string(b.Rune())
}

/*
PreviewMask draws what survives a knockout: every 2x4 block of pixels
becomes one braille symbol, with a raised dot for each pixel that is at
least half opaque. Fully knocked out areas print as blank braille cells, so
the outline of the subject stays visible in a terminal. Pixels past the
right or bottom edge are left empty.
*/
func PreviewMask(w io.Writer, img image.Image) error {
	bw := bufio.NewWriter(w)
	// An image's bounds do not necessarily start at (0, 0). Looping over Y
	// first and X second follows the memory layout of the usual image types.
	bounds := img.Bounds()
	for py := bounds.Min.Y; py < bounds.Max.Y; py += 4 {
		for px := bounds.Min.X; px < bounds.Max.X; px += 2 {
			var b Braille
			for y := 0; y < 4; y++ {
				for x := 0; x < 2; x++ {
					if px+x >= bounds.Max.X || py+y >= bounds.Max.Y {
						continue
					}
					_, _, _, a := img.At(px+x, py+y).RGBA()
					b[x][y] = a >= 0x8000
				}
			}
			if _, err := bw.WriteString(b.String()); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
