package wm

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/neopult/neopult/errors"
)

// Alignment is the corner an AlignedGeometry's offset is measured from.
type Alignment int

const (
	TopLeft Alignment = iota
	TopRight
	BottomRight
	BottomLeft
)

func (a Alignment) String() string {
	switch a {
	case TopLeft:
		return "lt"
	case TopRight:
		return "rt"
	case BottomRight:
		return "rb"
	case BottomLeft:
		return "lb"
	default:
		return "unknown"
	}
}

// ParseAlignmentTag parses one of the four corner tags a script-provided
// dynamic min-geometry callback returns, the inverse of Alignment.String.
func ParseAlignmentTag(s string) (Alignment, bool) {
	switch s {
	case "lt":
		return TopLeft, true
	case "rt":
		return TopRight, true
	case "rb":
		return BottomRight, true
	case "lb":
		return BottomLeft, true
	default:
		return 0, false
	}
}

// AlignedGeometry is a window size plus an offset measured from one of the
// four screen corners, as written in script geometry strings:
// "WxH+X+Y" (or any sign combination).
type AlignedGeometry struct {
	W, H      uint16
	XOff, YOff uint16
	Alignment Alignment
}

var geometryPattern = regexp.MustCompile(`^(\d+)x(\d+)([+-])(\d+)([+-])(\d+)$`)

// ParseAlignedGeometry parses the grammar `^WxH[+-]X[+-]Y$`. Leading or
// trailing whitespace, negative dimensions, and missing components are all
// rejected.
func ParseAlignedGeometry(s string) (AlignedGeometry, error) {
	m := geometryPattern.FindStringSubmatch(s)
	if m == nil {
		return AlignedGeometry{}, errors.Newf("invalid geometry string %q: expected WxH+X+Y", s)
	}

	w, err := strconv.ParseUint(m[1], 10, 16)
	if err != nil {
		return AlignedGeometry{}, errors.Wrapf(err, "invalid width in geometry %q", s)
	}
	h, err := strconv.ParseUint(m[2], 10, 16)
	if err != nil {
		return AlignedGeometry{}, errors.Wrapf(err, "invalid height in geometry %q", s)
	}
	xOff, err := strconv.ParseUint(m[4], 10, 16)
	if err != nil {
		return AlignedGeometry{}, errors.Wrapf(err, "invalid x offset in geometry %q", s)
	}
	yOff, err := strconv.ParseUint(m[6], 10, 16)
	if err != nil {
		return AlignedGeometry{}, errors.Wrapf(err, "invalid y offset in geometry %q", s)
	}

	alignment, err := alignmentFromSigns(m[3], m[5])
	if err != nil {
		return AlignedGeometry{}, err
	}

	return AlignedGeometry{
		W: uint16(w), H: uint16(h),
		XOff: uint16(xOff), YOff: uint16(yOff),
		Alignment: alignment,
	}, nil
}

func alignmentFromSigns(xSign, ySign string) (Alignment, error) {
	switch {
	case xSign == "+" && ySign == "+":
		return TopLeft, nil
	case xSign == "-" && ySign == "+":
		return TopRight, nil
	case xSign == "-" && ySign == "-":
		return BottomRight, nil
	case xSign == "+" && ySign == "-":
		return BottomLeft, nil
	default:
		return 0, errors.Newf("impossible sign combination %q%q", xSign, ySign)
	}
}

// Resolve converts the aligned geometry into an absolute top-left (x, y) on
// a screen of the given size.
func (g AlignedGeometry) Resolve(screen Size) (x, y int32) {
	switch g.Alignment {
	case TopLeft:
		return int32(g.XOff), int32(g.YOff)
	case TopRight:
		return int32(screen.W) - int32(g.XOff) - int32(g.W), int32(g.YOff)
	case BottomRight:
		return int32(screen.W) - int32(g.XOff) - int32(g.W), int32(screen.H) - int32(g.YOff) - int32(g.H)
	case BottomLeft:
		return int32(g.XOff), int32(screen.H) - int32(g.YOff) - int32(g.H)
	default:
		return 0, 0
	}
}

// FromWidthHeight builds the AlignedGeometry for a window that should fill
// the whole screen: top-left aligned at (0,0) with the given size.
func FromWidthHeight(w, h uint16) AlignedGeometry {
	return AlignedGeometry{W: w, H: h, XOff: 0, YOff: 0, Alignment: TopLeft}
}

func (g AlignedGeometry) String() string {
	xSign, ySign := "+", "+"
	switch g.Alignment {
	case TopRight:
		xSign = "-"
	case BottomRight:
		xSign, ySign = "-", "-"
	case BottomLeft:
		ySign = "-"
	}
	return fmt.Sprintf("%dx%d%s%d%s%d", g.W, g.H, xSign, g.XOff, ySign, g.YOff)
}
