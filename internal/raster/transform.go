package raster

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/srwiley/rasterx"

	"github.com/pwnholic/slidecap/internal/svgdoc"
)

var transformRe = regexp.MustCompile(`([a-zA-Z]+)\s*\(([^)]*)\)`)

// parseTransform reads an SVG transform list such as
// "translate(10 20) scale(2)" into a single matrix.
func parseTransform(raw string) (rasterx.Matrix2D, error) {
	m := rasterx.Identity
	matches := transformRe.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 && strings.TrimSpace(raw) != "" {
		return m, fmt.Errorf("transform %q: no operations", raw)
	}

	for _, match := range matches {
		args, err := svgdoc.ParseNumbers(match[2])
		if err != nil {
			return rasterx.Identity, fmt.Errorf("transform %q: %w", raw, err)
		}
		op, err := transformOp(match[1], args)
		if err != nil {
			return rasterx.Identity, fmt.Errorf("transform %q: %w", raw, err)
		}
		m = m.Mult(op)
	}
	return m, nil
}

func transformOp(name string, a []float64) (rasterx.Matrix2D, error) {
	switch {
	case name == "matrix" && len(a) == 6:
		return rasterx.Matrix2D{A: a[0], B: a[1], C: a[2], D: a[3], E: a[4], F: a[5]}, nil
	case name == "translate" && len(a) == 1:
		return rasterx.Matrix2D{A: 1, D: 1, E: a[0]}, nil
	case name == "translate" && len(a) == 2:
		return rasterx.Matrix2D{A: 1, D: 1, E: a[0], F: a[1]}, nil
	case name == "scale" && len(a) == 1:
		return rasterx.Matrix2D{A: a[0], D: a[0]}, nil
	case name == "scale" && len(a) == 2:
		return rasterx.Matrix2D{A: a[0], D: a[1]}, nil
	case name == "rotate" && (len(a) == 1 || len(a) == 3):
		rad := a[0] * math.Pi / 180
		sin, cos := math.Sin(rad), math.Cos(rad)
		rot := rasterx.Matrix2D{A: cos, B: sin, C: -sin, D: cos}
		if len(a) == 3 {
			to := rasterx.Matrix2D{A: 1, D: 1, E: a[1], F: a[2]}
			back := rasterx.Matrix2D{A: 1, D: 1, E: -a[1], F: -a[2]}
			return to.Mult(rot).Mult(back), nil
		}
		return rot, nil
	case name == "skewX" && len(a) == 1:
		return rasterx.Matrix2D{A: 1, C: math.Tan(a[0] * math.Pi / 180), D: 1}, nil
	case name == "skewY" && len(a) == 1:
		return rasterx.Matrix2D{A: 1, B: math.Tan(a[0] * math.Pi / 180), D: 1}, nil
	}
	return rasterx.Identity, fmt.Errorf("unsupported %s with %d arguments", name, len(a))
}
