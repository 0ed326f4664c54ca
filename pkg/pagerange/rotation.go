package pagerange

// Rotation is a page rotation modifier. The zero value leaves pages unchanged.
type Rotation struct {
	Degrees  int // 0, 90, 180 or 270
	Absolute bool
}

// rotation codes: N/E/S/W set an orientation, L/R/D adjust the current one
var rotationCodes = map[byte]Rotation{
	'N': {Degrees: 0, Absolute: true},
	'E': {Degrees: 90, Absolute: true},
	'S': {Degrees: 180, Absolute: true},
	'W': {Degrees: 270, Absolute: true},
	'L': {Degrees: 270},
	'R': {Degrees: 90},
	'D': {Degrees: 180},
}

// RotationFromCode returns the rotation named by a single code letter
func RotationFromCode(c byte) (Rotation, bool) {
	r, ok := rotationCodes[c]
	return r, ok
}

// Apply returns the final rotation of a page whose current rotation is existing
func (r Rotation) Apply(existing int) int {
	deg := r.Degrees
	if !r.Absolute {
		deg += existing
	}
	return normalizeDegrees(deg)
}

// IsIdentity reports whether applying r never changes a page
func (r Rotation) IsIdentity() bool {
	return !r.Absolute && r.Degrees%360 == 0
}

func normalizeDegrees(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}
