package tilegrid

import (
	"fmt"

	"github.com/kaart/tegel/plane"
)

// TileKey identifies one tile slot in the grid. X and Y are unwrapped
// grid coordinates (they can run negative or past the world edge on a
// wrapping axis; the grid wraps them only when talking to a Source),
// Z is the integer zoom level.
type TileKey struct {
	X, Y int
	Z    int
}

func (k TileKey) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Z, k.X, k.Y)
}

// Parent returns the key of the tile one zoom level up that covers this
// tile, ok=false at zoom 0.
func (k TileKey) Parent() (TileKey, bool) {
	if k.Z <= 0 {
		return TileKey{}, false
	}
	return TileKey{X: floorDiv(k.X, 2), Y: floorDiv(k.Y, 2), Z: k.Z - 1}, true
}

// Children returns the four tiles one zoom level down that this tile covers.
func (k TileKey) Children() [4]TileKey {
	x, y, z := k.X*2, k.Y*2, k.Z+1
	return [4]TileKey{
		{X: x, Y: y, Z: z},
		{X: x + 1, Y: y, Z: z},
		{X: x, Y: y + 1, Z: z},
		{X: x + 1, Y: y + 1, Z: z},
	}
}

// center is the tile's center in tile units at its own zoom.
func (k TileKey) center() plane.Point {
	return plane.Pt(float64(k.X)+0.5, float64(k.Y)+0.5)
}

// floorDiv divides rounding towards negative infinity, so parents of
// negative (unwrapped) coordinates come out right.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

var (
	interleaveMasks = [...]uint64{
		0x5555555555555555,
		0x3333333333333333,
		0x0F0F0F0F0F0F0F0F,
		0x00FF00FF00FF00FF,
		0x0000FFFF0000FFFF,
		0x00000000FFFFFFFF,
	}
	interleaveShifts = [...]uint{0, 1, 2, 4, 8, 16}
)

// coordBias recenters a signed grid coordinate into unsigned range so
// negative unwrapped coordinates still interleave.
const (
	coordBits  = 29
	coordBias  = 1 << (coordBits - 1)
	coordLimit = 1 << coordBits
)

// ID packs the key into one uint64: zoom in the top 6 bits, the x and y
// bits interleaved below. The packing is bijective for coordinates
// within ±2^28 and zooms up to 63, which covers every usable tile grid.
func (k TileKey) ID() (uint64, bool) {
	bx := int64(k.X) + coordBias
	by := int64(k.Y) + coordBias
	if bx < 0 || by < 0 || bx >= coordLimit || by >= coordLimit || k.Z < 0 || k.Z > 63 {
		return 0, false
	}
	x, y := uint64(bx), uint64(by)
	for i := 4; i >= 0; i-- {
		x = (x | (x << interleaveShifts[i+1])) & interleaveMasks[i]
		y = (y | (y << interleaveShifts[i+1])) & interleaveMasks[i]
	}
	return uint64(k.Z)<<(2*coordBits) | x | y<<1, true
}

func (k TileKey) MustID() uint64 {
	id, ok := k.ID()
	if !ok {
		panic(fmt.Errorf("cannot make an id out of tile %v", k))
	}
	return id
}

// KeyFromID is the inverse of ID.
func KeyFromID(id uint64) TileKey {
	z := int(id >> (2 * coordBits))
	x := id & (1<<(2*coordBits) - 1)
	y := x >> 1
	for i := 0; i <= 5; i++ {
		x = (x | (x >> interleaveShifts[i])) & interleaveMasks[i]
		y = (y | (y >> interleaveShifts[i])) & interleaveMasks[i]
	}
	x &= coordLimit - 1
	y &= coordLimit - 1
	return TileKey{
		X: int(int64(x) - coordBias),
		Y: int(int64(y) - coordBias),
		Z: z,
	}
}
