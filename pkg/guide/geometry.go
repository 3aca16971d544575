package guide

import (
	"strings"

	"github.com/guidesense/guidesense/pkg/types"
)

// DefaultGeometry is returned for series codes missing from the table.
var DefaultGeometry = types.Geometry{
	Series:          "default",
	BallDiameterMM:  6.35,
	RacewayLengthMM: 70,
	BallCount:       26,
	ContactAngleDeg: 45,
}

// geometries is keyed by upper-cased series code.
var geometries = map[string]types.Geometry{
	"HRC15": {Series: "HRC15", BallDiameterMM: 3.175, RacewayLengthMM: 50, BallCount: 20, ContactAngleDeg: 45},
	"HRC20": {Series: "HRC20", BallDiameterMM: 4.763, RacewayLengthMM: 60, BallCount: 22, ContactAngleDeg: 45},
	"HRC25": {Series: "HRC25", BallDiameterMM: 6.35, RacewayLengthMM: 70, BallCount: 26, ContactAngleDeg: 45},
	"HRC30": {Series: "HRC30", BallDiameterMM: 7.938, RacewayLengthMM: 80, BallCount: 28, ContactAngleDeg: 45},
	"HRC35": {Series: "HRC35", BallDiameterMM: 9.525, RacewayLengthMM: 100, BallCount: 32, ContactAngleDeg: 45},
	"HRC45": {Series: "HRC45", BallDiameterMM: 12.7, RacewayLengthMM: 120, BallCount: 36, ContactAngleDeg: 45},
}

// Resolve returns the geometry for series and whether it was found in the
// table. A miss returns DefaultGeometry with ok == false.
func Resolve(series string) (geom types.Geometry, ok bool) {
	g, ok := geometries[strings.ToUpper(strings.TrimSpace(series))]
	if !ok {
		return DefaultGeometry, false
	}
	return g, true
}

// Series returns the known series codes in table order.
func Series() []string {
	return []string{"HRC15", "HRC20", "HRC25", "HRC30", "HRC35", "HRC45"}
}
