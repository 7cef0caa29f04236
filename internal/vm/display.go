package vm

// Display is the 64x32 monochrome frame buffer, one byte (0 or 1) per pixel,
// row-major. The dirty flag is raised by every change and lowered by the
// renderer once it has consumed a frame.
type Display struct {
	gfx   [ScreenWidth * ScreenHeight]uint8
	dirty bool
}

// Clear resets every pixel to 0.
func (d *Display) Clear() {
	for i := range d.gfx {
		d.gfx[i] = 0
	}
	d.dirty = true
}

// Pixel reports whether the pixel at (x, y) is set. Coordinates outside the
// screen report false.
func (d *Display) Pixel(x, y int) bool {
	if x < 0 || x >= ScreenWidth || y < 0 || y >= ScreenHeight {
		return false
	}
	return d.gfx[y*ScreenWidth+x] != 0
}

// DrawSprite XORs an 8-pixel wide sprite onto the screen. The origin wraps
// around the screen; rows and columns that run past the right or bottom
// edge are clipped. It reports whether any set pixel was turned off.
func (d *Display) DrawSprite(sprite []uint8, x, y uint8) bool {
	originX := int(x) % ScreenWidth
	originY := int(y) % ScreenHeight

	collision := false
	for row, bits := range sprite {
		py := originY + row
		if py >= ScreenHeight {
			break
		}

		const width = 8
		for col := 0; col < width; col++ {
			if bits&(0x80>>col) == 0 {
				continue
			}

			px := originX + col
			if px >= ScreenWidth {
				break
			}

			addr := py*ScreenWidth + px
			if d.gfx[addr] != 0 {
				collision = true
			}
			d.gfx[addr] ^= 1
		}
	}

	d.dirty = true
	return collision
}

// Pixels exposes the frame buffer. The slice aliases the display and must
// be treated as read-only.
func (d *Display) Pixels() []uint8 {
	return d.gfx[:]
}

// Dirty reports whether the buffer changed since the last MarkClean.
func (d *Display) Dirty() bool {
	return d.dirty
}

// MarkClean lowers the dirty flag.
func (d *Display) MarkClean() {
	d.dirty = false
}
