package colour

import "math"

// candidate is a palette entry with its cached Lab value and the distance to
// the nearest colour selected so far.
type candidate struct {
	entry   Entry
	lab     Lab
	hex     string
	nearest float64
	taken   bool
}

// SelectDominant picks up to n colours from the palette that are both
// prevalent and mutually distinct.
//
// The heaviest entry is chosen first. Each following pick is the entry whose
// CIEDE2000 distance to its nearest already-selected colour is largest
// (farthest-point selection). Ties go to the heavier entry, then to the
// lexicographically smaller hex code, so the result is deterministic for a
// given palette regardless of entry order.
//
// If the palette holds fewer than n entries all of them are returned.
func SelectDominant(p *Palette, n int) []RGB {
	if p == nil || n <= 0 || p.Len() == 0 {
		return []RGB{}
	}

	candidates := make([]candidate, p.Len())
	for i, e := range p.entries {
		candidates[i] = candidate{
			entry:   e,
			lab:     e.Colour.Lab(),
			hex:     e.Colour.Hex(),
			nearest: math.Inf(1),
		}
	}

	n = min(n, len(candidates))
	selected := make([]RGB, 0, n)

	first := 0
	for i := 1; i < len(candidates); i++ {
		if heavier(candidates[i], candidates[first]) {
			first = i
		}
	}
	selected = append(selected, take(candidates, first))

	for len(selected) < n {
		best := -1
		for i := range candidates {
			c := &candidates[i]
			if c.taken {
				continue
			}
			if best == -1 || farther(*c, candidates[best]) {
				best = i
			}
		}
		selected = append(selected, take(candidates, best))
	}

	return selected
}

// take marks candidates[i] as selected and folds its distance into the
// nearest-selected distance of every remaining candidate.
func take(candidates []candidate, i int) RGB {
	chosen := &candidates[i]
	chosen.taken = true
	for j := range candidates {
		c := &candidates[j]
		if c.taken {
			continue
		}
		if d := Distance(c.lab, chosen.lab); d < c.nearest {
			c.nearest = d
		}
	}
	return chosen.entry.Colour
}

// heavier orders candidates by weight, then by hex code.
func heavier(a, b candidate) bool {
	if a.entry.Weight != b.entry.Weight {
		return a.entry.Weight > b.entry.Weight
	}
	return a.hex < b.hex
}

// farther orders candidates by distance to the selection, then by heavier.
func farther(a, b candidate) bool {
	if a.nearest != b.nearest {
		return a.nearest > b.nearest
	}
	return heavier(a, b)
}

// HexStrings renders colours as 6-digit lowercase hex codes.
func HexStrings(colours []RGB) []string {
	out := make([]string, len(colours))
	for i, c := range colours {
		out[i] = c.Hex()
	}
	return out
}
