package detection

import (
	"math"
	"sort"

	"github.com/publicMindee/doctr/model"
)

// Connectivity is the neighbourhood used when labelling components
type Connectivity int

const (
	Connect4 Connectivity = 4
	Connect8 Connectivity = 8
)

// mask is a binary image stored in row-major order
type mask struct {
	w, h int
	pix  []bool
}

func newMask(w, h int) *mask {
	return &mask{w: w, h: h, pix: make([]bool, w*h)}
}

// threshold binarizes a probability map of size w*h
func threshold(prob []float32, w, h int, thresh float64) *mask {
	m := newMask(w, h)
	for i, v := range prob {
		m.pix[i] = float64(v) >= thresh
	}
	return m
}

func (m *mask) at(x, y int) bool {
	if x < 0 || y < 0 || x >= m.w || y >= m.h {
		return false
	}
	return m.pix[y*m.w+x]
}

// erode keeps a pixel only when its whole 3x3 neighbourhood is set.
// Out-of-bounds neighbours count as set so shapes touching the border
// are not eaten away.
func (m *mask) erode() *mask {
	out := newMask(m.w, m.h)
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			keep := true
			for dy := -1; dy <= 1 && keep; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= m.w || ny >= m.h {
						continue
					}
					if !m.pix[ny*m.w+nx] {
						keep = false
						break
					}
				}
			}
			out.pix[y*m.w+x] = keep
		}
	}
	return out
}

// dilate sets a pixel when any pixel of its 3x3 neighbourhood is set
func (m *mask) dilate() *mask {
	out := newMask(m.w, m.h)
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			if !m.pix[y*m.w+x] {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := x+dx, y+dy
					if nx >= 0 && ny >= 0 && nx < m.w && ny < m.h {
						out.pix[ny*m.w+nx] = true
					}
				}
			}
		}
	}
	return out
}

// open removes specks and thin bridges smaller than the 3x3 kernel
func (m *mask) open() *mask {
	return m.erode().dilate()
}

// component is a connected set of foreground pixels
type component struct {
	// pixels are flat indices into the mask, first one in raster order
	pixels []int

	minX, minY, maxX, maxY int
}

func (c *component) width() int  { return c.maxX - c.minX + 1 }
func (c *component) height() int { return c.maxY - c.minY + 1 }

// score is the mean of prob over the component pixels
func (c *component) score(prob []float32) float64 {
	if len(c.pixels) == 0 {
		return 0
	}
	var sum float64
	for _, i := range c.pixels {
		sum += float64(prob[i])
	}
	return sum / float64(len(c.pixels))
}

// components labels the foreground of m. Components are returned in the
// raster order of their first pixel.
func (m *mask) components(conn Connectivity) []component {
	seen := make([]bool, len(m.pix))
	var comps []component
	var queue []int

	for start, on := range m.pix {
		if !on || seen[start] {
			continue
		}

		c := component{minX: m.w, minY: m.h, maxX: -1, maxY: -1}
		seen[start] = true
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			p := queue[0]
			queue = queue[1:]
			c.pixels = append(c.pixels, p)

			x, y := p%m.w, p/m.w
			c.minX = min(c.minX, x)
			c.maxX = max(c.maxX, x)
			c.minY = min(c.minY, y)
			c.maxY = max(c.maxY, y)

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					if conn == Connect4 && dx != 0 && dy != 0 {
						continue
					}
					nx, ny := x+dx, y+dy
					if !m.at(nx, ny) {
						continue
					}
					n := ny*m.w + nx
					if !seen[n] {
						seen[n] = true
						queue = append(queue, n)
					}
				}
			}
		}
		comps = append(comps, c)
	}
	return comps
}

// Moore neighbourhood in clockwise order (y grows downwards), starting west
var moore = [8][2]int{
	{-1, 0}, {-1, -1}, {0, -1}, {1, -1},
	{1, 0}, {1, 1}, {0, 1}, {-1, 1},
}

func mooreIndex(dx, dy int) int {
	for i, d := range moore {
		if d[0] == dx && d[1] == dy {
			return i
		}
	}
	return 0
}

// contour traces the outer boundary of the component containing start,
// which must be its first pixel in raster order. Points are pixel centres.
// Tracing stops when the start pixel is left again in the initial direction.
func (m *mask) contour(start int) []model.Point {
	sx, sy := start%m.w, start/m.w
	pts := []model.Point{{X: float64(sx) + 0.5, Y: float64(sy) + 0.5}}

	// The west neighbour of the first raster pixel is background.
	cx, cy, back := sx, sy, 0
	firstMove := -1
	limit := 4*len(m.pix) + 8

	for step := 0; step < limit; step++ {
		moved := -1
		for k := 1; k <= 8; k++ {
			d := (back + k) % 8
			if m.at(cx+moore[d][0], cy+moore[d][1]) {
				moved = d
				break
			}
		}
		if moved < 0 {
			break
		}
		if cx == sx && cy == sy {
			if firstMove < 0 {
				firstMove = moved
			} else if moved == firstMove {
				break
			}
		}

		nx, ny := cx+moore[moved][0], cy+moore[moved][1]
		prev := (moved + 7) % 8
		back = mooreIndex(cx+moore[prev][0]-nx, cy+moore[prev][1]-ny)
		cx, cy = nx, ny
		pts = append(pts, model.Point{X: float64(cx) + 0.5, Y: float64(cy) + 0.5})
	}

	if n := len(pts); n > 1 && pts[n-1] == pts[0] {
		pts = pts[:n-1]
	}
	return pts
}

// polygonArea returns the absolute shoelace area of a closed polygon
func polygonArea(pts []model.Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var s float64
	for i := range pts {
		j := (i + 1) % len(pts)
		s += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(s) / 2
}

// polygonPerimeter returns the length of the closed polygon
func polygonPerimeter(pts []model.Point) float64 {
	if len(pts) < 2 {
		return 0
	}
	var p float64
	for i := range pts {
		p += pts[i].Distance(pts[(i+1)%len(pts)])
	}
	return p
}

func cross(o, a, b model.Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// convexHull returns the hull of pts in counter-clockwise order using
// Andrew's monotone chain. Collinear points are dropped.
func convexHull(pts []model.Point) []model.Point {
	if len(pts) < 3 {
		return append([]model.Point(nil), pts...)
	}
	sorted := append([]model.Point(nil), pts...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	hull := make([]model.Point, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// rotatedRect is a rectangle given by its centre, unit axis and half extents
type rotatedRect struct {
	center model.Point
	axis   model.Point // unit vector along the first side
	halfU  float64
	halfV  float64
}

func (r rotatedRect) area() float64 { return 4 * r.halfU * r.halfV }

// grow expands the rectangle by d on every side
func (r rotatedRect) grow(d float64) rotatedRect {
	r.halfU += d
	r.halfV += d
	return r
}

// corners returns the four corners, clockwise from the one at -u,-v
func (r rotatedRect) corners() []model.Point {
	ux, uy := r.axis.X, r.axis.Y
	vx, vy := -uy, ux
	at := func(su, sv float64) model.Point {
		return model.Point{
			X: r.center.X + su*r.halfU*ux + sv*r.halfV*vx,
			Y: r.center.Y + su*r.halfU*uy + sv*r.halfV*vy,
		}
	}
	return []model.Point{at(-1, -1), at(1, -1), at(1, 1), at(-1, 1)}
}

// minAreaRect finds the smallest rectangle enclosing pts. One side of the
// optimal rectangle is collinear with a hull edge, so every edge direction
// of the hull is tried (rotating calipers).
func minAreaRect(pts []model.Point) rotatedRect {
	hull := convexHull(pts)
	if len(hull) == 0 {
		return rotatedRect{axis: model.Point{X: 1}}
	}
	if len(hull) == 1 {
		return rotatedRect{center: hull[0], axis: model.Point{X: 1}}
	}

	best := rotatedRect{}
	bestArea := math.Inf(1)
	for i := range hull {
		a, b := hull[i], hull[(i+1)%len(hull)]
		length := a.Distance(b)
		if length == 0 {
			continue
		}
		ux, uy := (b.X-a.X)/length, (b.Y-a.Y)/length
		vx, vy := -uy, ux

		minU, maxU := math.Inf(1), math.Inf(-1)
		minV, maxV := math.Inf(1), math.Inf(-1)
		for _, p := range hull {
			u := p.X*ux + p.Y*uy
			v := p.X*vx + p.Y*vy
			minU, maxU = math.Min(minU, u), math.Max(maxU, u)
			minV, maxV = math.Min(minV, v), math.Max(maxV, v)
		}

		area := (maxU - minU) * (maxV - minV)
		if area < bestArea {
			bestArea = area
			cu, cv := (minU+maxU)/2, (minV+maxV)/2
			best = rotatedRect{
				center: model.Point{X: cu*ux + cv*vx, Y: cu*uy + cv*vy},
				axis:   model.Point{X: ux, Y: uy},
				halfU:  (maxU - minU) / 2,
				halfV:  (maxV - minV) / 2,
			}
		}
	}
	return best
}
