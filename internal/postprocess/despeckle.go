package postprocess

import "image"

// Despeckle clears 8-connected groups of visible pixels that hold less than
// minRatio of all visible pixels, in place. Stray fragments from geometry
// clipping into the camera's near plane are the usual target. It returns the
// number of pixels cleared. minRatio <= 0 is a no-op.
func Despeckle(img *image.NRGBA, minRatio float64) int {
	if minRatio <= 0 {
		return 0
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	visible := func(i int) bool {
		x, y := i%w, i/w
		return img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)+3] > 0
	}

	// label 0 is unvisited, components start at 1
	labels := make([]int32, w*h)
	var sizes []int
	total := 0
	stack := make([]int, 0, 256)

	for start := range labels {
		if labels[start] != 0 || !visible(start) {
			continue
		}
		id := int32(len(sizes) + 1)
		labels[start] = id
		stack = append(stack[:0], start)
		size := 0
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			cx, cy := cur%w, cur/w
			for ny := max(cy-1, 0); ny <= min(cy+1, h-1); ny++ {
				for nx := max(cx-1, 0); nx <= min(cx+1, w-1); nx++ {
					n := ny*w + nx
					if labels[n] == 0 && visible(n) {
						labels[n] = id
						stack = append(stack, n)
					}
				}
			}
		}
		sizes = append(sizes, size)
		total += size
	}
	if len(sizes) <= 1 {
		return 0
	}

	minSize := int(float64(total) * minRatio)
	cleared := 0
	for i, id := range labels {
		if id == 0 || sizes[id-1] >= minSize {
			continue
		}
		off := img.PixOffset(b.Min.X+i%w, b.Min.Y+i/w)
		clear(img.Pix[off : off+4])
		cleared++
	}
	return cleared
}
