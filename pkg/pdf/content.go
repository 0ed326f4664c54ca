package pdf

import (
	"fmt"
	"math"
)

// Matrix is a PDF transformation matrix [a b c d e f]
type Matrix [6]float64

// Identity is the identity matrix
var Identity = Matrix{1, 0, 0, 1, 0, 0}

// Multiply returns m followed by n
func (m Matrix) Multiply(n Matrix) Matrix {
	return Matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

// Apply transforms a point
func (m Matrix) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// Transform returns the bounding box of r transformed by m
func (m Matrix) Transform(r Rectangle) Rectangle {
	xs := [4]float64{}
	ys := [4]float64{}
	xs[0], ys[0] = m.Apply(r.LLX, r.LLY)
	xs[1], ys[1] = m.Apply(r.URX, r.LLY)
	xs[2], ys[2] = m.Apply(r.LLX, r.URY)
	xs[3], ys[3] = m.Apply(r.URX, r.URY)
	out := Rectangle{LLX: math.Inf(1), LLY: math.Inf(1), URX: math.Inf(-1), URY: math.Inf(-1)}
	for i := range xs {
		out.LLX = min(out.LLX, xs[i])
		out.LLY = min(out.LLY, ys[i])
		out.URX = max(out.URX, xs[i])
		out.URY = max(out.URY, ys[i])
	}
	return out
}

// Operator returns the matrix as a cm operator
func (m Matrix) Operator() string {
	return fmt.Sprintf("%s %s %s %s %s %s cm",
		formatReal(m[0]), formatReal(m[1]), formatReal(m[2]),
		formatReal(m[3]), formatReal(m[4]), formatReal(m[5]))
}

// matrixFrom reads a PDF matrix array, defaulting to the identity
func (d *Document) matrixFrom(obj Object) Matrix {
	arr, ok := resolveArray(d, obj)
	if !ok || len(arr) != 6 {
		return Identity
	}
	var m Matrix
	for i := range m {
		m[i], _ = resolveNumber(d, arr[i])
	}
	return m
}

// addContent wraps the existing content of page in q/Q and adds before
// and after around it. Either may be empty.
func (d *Document) addContent(page Dictionary, before, after []byte) {
	var existing Array
	switch v := page.Get("Contents").(type) {
	case Reference:
		if arr, ok := resolveArray(d, v); ok {
			existing = append(existing, arr...)
		} else {
			existing = Array{v}
		}
	case Array:
		existing = append(existing, v...)
	case Stream:
		existing = Array{d.Add(v)}
	}

	open := append(append([]byte{}, before...), []byte("q\n")...)
	closing := append([]byte("\nQ\n"), after...)

	contents := Array{d.Add(Stream{Dictionary: Dictionary{}, Data: open})}
	contents = append(contents, existing...)
	contents = append(contents, d.Add(Stream{Dictionary: Dictionary{}, Data: closing}))
	page["Contents"] = contents
}

// pageXObjects returns a writable XObject dictionary of page. The page's
// resources are copied first so that resources shared with other pages
// stay untouched.
func (d *Document) pageXObjects(page Dictionary) Dictionary {
	res, ok := resolveDict(d, page.Get("Resources"))
	if !ok {
		res = Dictionary{}
	}
	res = res.Clone()
	xobjects, ok := resolveDict(d, res.Get("XObject"))
	if !ok {
		xobjects = Dictionary{}
	}
	xobjects = xobjects.Clone()
	res["XObject"] = xobjects
	page["Resources"] = res
	return xobjects
}

// uniqueName returns prefix followed by the lowest number not yet used
// as a key in dict
func uniqueName(dict Dictionary, prefix string) Name {
	for i := 1; ; i++ {
		n := Name(fmt.Sprintf("%s%d", prefix, i))
		if _, used := dict[n]; !used {
			return n
		}
	}
}
