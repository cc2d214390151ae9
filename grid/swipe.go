package grid

// Swipe mutates g according to dir and returns the sum of the displayed
// values (2^exponent) of every tile produced by a fusion during this
// swipe. It applies the per-line rules directly: within
// each line (row for Left/Right, column for Up/Down), non-empty tiles
// slide toward the swipe's destination end past contiguous empties; a
// sliding tile meeting an equal, not-yet-fused tile fuses into one tile
// of exponent+1; a tile that has just fused cannot fuse again this swipe.
func (g *Grid) Swipe(dir Dir) uint64 {
	var total uint64
	switch dir {
	case Left, Right:
		towardEnd := dir == Right
		line := make([]uint, g.n)
		for r := 0; r < g.n; r++ {
			for c := 0; c < g.n; c++ {
				line[c] = g.ReadTile(r, c)
			}
			newLine, delta := slideLine(line, towardEnd)
			total += delta
			for c := 0; c < g.n; c++ {
				g.WriteTile(r, c, newLine[c])
			}
		}
	case Up, Down:
		towardEnd := dir == Down
		line := make([]uint, g.n)
		for c := 0; c < g.n; c++ {
			for r := 0; r < g.n; r++ {
				line[r] = g.ReadTile(r, c)
			}
			newLine, delta := slideLine(line, towardEnd)
			total += delta
			for r := 0; r < g.n; r++ {
				g.WriteTile(r, c, newLine[r])
			}
		}
	}
	return total
}

// slideLine applies one swipe's worth of slide-and-fuse to a single line
// of tile exponents (0 = empty), sliding toward the far end of the slice
// if towardEnd, else toward index 0. It returns the new line and the sum
// of displayed values of fused tiles.
func slideLine(line []uint, towardEnd bool) ([]uint, uint64) {
	n := len(line)
	ordered := make([]uint, n)
	if towardEnd {
		for i := 0; i < n; i++ {
			ordered[i] = line[n-1-i]
		}
	} else {
		copy(ordered, line)
	}

	nonzero := ordered[:0:0]
	for _, t := range ordered {
		if t != 0 {
			nonzero = append(nonzero, t)
		}
	}

	out := make([]uint, 0, n)
	var total uint64
	for i := 0; i < len(nonzero); {
		if i+1 < len(nonzero) && nonzero[i] == nonzero[i+1] {
			fused := nonzero[i] + 1
			out = append(out, fused)
			total += uint64(1) << fused
			i += 2
		} else {
			out = append(out, nonzero[i])
			i++
		}
	}
	for len(out) < n {
		out = append(out, 0)
	}

	if towardEnd {
		result := make([]uint, n)
		for i := 0; i < n; i++ {
			result[i] = out[n-1-i]
		}
		return result, total
	}
	return out, total
}

// SwipeCopy returns a fresh grid equal to the result of swiping a clone of
// g, leaving g itself untouched, along with the fusion score delta.
func (g *Grid) SwipeCopy(dir Dir) (*Grid, uint64) {
	cp := g.Clone()
	delta := cp.Swipe(dir)
	return cp, delta
}

// HasMoves reports whether at least one of the four swipes would change
// the grid. The empty grid has no moves in the conventional sense, but
// callers that need the tablebase's terminal classification should
// special-case the empty grid themselves (it is treated as non-terminal).
func (g *Grid) HasMoves() bool {
	for _, d := range Dirs {
		cp, _ := g.SwipeCopy(d)
		if !cp.Equal(g) {
			return true
		}
	}
	return false
}
