// Package moon computes lunar phases with John Conway's "in your head"
// arithmetic. In this form the algorithm is only valid for 20th- and
// 21st-century dates. See http://www.ben-daglish.net/moon.shtml.
package moon

import (
	"fmt"
	"math"
)

var (
	glyphs    = []rune("  ))))))))))))OOO(((((((((((( ")
	fractions = []rune("00¼¼¼¼½½½½¾¾¾¾111¾¾¾¾½½½½¼¼¼¼0")
)

// Phase returns the phase day for a calendar date "yyyy-mm-dd", where
// 0 is the new moon and 15 the full moon. Returns an error for a date
// that does not parse.
func Phase(date string) (int, error) {
	var year, month, day int
	if _, err := fmt.Sscanf(date, "%d-%d-%d", &year, &month, &day); err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", date, err)
	}
	r := year % 100
	r %= 19
	if r > 9 {
		r -= 19
	}
	r = mod30(r*11) + month + day
	if month < 3 {
		r += 2
	}
	f := float64(r)
	if year < 2000 {
		f -= 4
	} else {
		f -= 8.3
	}
	p := int(math.Floor(f+0.5)) % 30
	if p < 0 {
		p += 30
	}
	return p, nil
}

// Display returns the phase day together with a pseudo-graphic moon and an
// illumination fraction label, e.g. "10 [  )  ] ¾". An unparseable date
// yields the empty string.
func Display(date string) string {
	p, err := Phase(date)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%d [  %c  ] %c", p, glyphs[p], fractions[p])
}

// mod30 reduces modulo 30 with a non-negative result.
func mod30(n int) int {
	n %= 30
	if n < 0 {
		n += 30
	}
	return n
}
