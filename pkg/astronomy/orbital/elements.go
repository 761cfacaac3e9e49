package orbital

import (
	"math"

	errorsmod "cosmossdk.io/errors"

	"github.com/oxygene76/reflectx/internal/types"
)

const (
	// KeplerTolerance is the eccentric-anomaly step size at which the solver stops
	KeplerTolerance = 0.001
	// KeplerMaxIterations caps the solver
	KeplerMaxIterations = 50
)

// OrbitalElements holds the Keplerian elements needed to place a planet on the sky
type OrbitalElements struct {
	Eccentricity       float64 // e, defined on [0,1)
	Inclination        float64 // i (radians), pi/2 is edge on
	ArgumentPeriapsis  float64 // ω (radians)
	MeanAnomaly        float64 // M (radians), 2π × orbit fraction since periapsis
	LongitudeAscending float64 // Ω (radians), does not affect the phase angle
}

// FromDegrees builds elements from the mixed units used in parameter tables: mean
// anomaly in radians, inclination and argument of periapsis in degrees.
func FromDegrees(meanAnomaly, ecc, incDeg, argpDeg float64) OrbitalElements {
	return OrbitalElements{
		Eccentricity:      ecc,
		Inclination:       incDeg * math.Pi / 180,
		ArgumentPeriapsis: argpDeg * math.Pi / 180,
		MeanAnomaly:       meanAnomaly,
	}
}

// Validate checks the elements describe a bound orbit
func (oe OrbitalElements) Validate() error {
	if math.IsNaN(oe.Eccentricity) || oe.Eccentricity < 0 || oe.Eccentricity >= 1 {
		return errorsmod.Wrapf(types.ErrInvalidParameter, "eccentricity %v outside [0,1)", oe.Eccentricity)
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"inclination", oe.Inclination},
		{"argument of periapsis", oe.ArgumentPeriapsis},
		{"mean anomaly", oe.MeanAnomaly},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return errorsmod.Wrapf(types.ErrInvalidParameter, "%s is not finite", f.name)
		}
	}
	return nil
}

// SolveKepler solves Kepler's equation M = E - e*sin(E) for the eccentric anomaly using
// Danby's quartically convergent extension of Newton's method.
func SolveKepler(meanAnomaly, ecc float64) (float64, error) {
	E := meanAnomaly + sign(math.Sin(meanAnomaly))*0.85*ecc

	for i := 0; i < KeplerMaxIterations; i++ {
		sinE, cosE := math.Sincos(E)
		f := E - ecc*sinE - meanAnomaly
		fp := 1 - ecc*cosE
		fpp := ecc * sinE
		fppp := ecc * cosE

		d1 := -f / fp
		d2 := -f / (fp + 0.5*d1*fpp)
		d3 := -f / (fp + 0.5*d2*fpp + d2*d2*fppp/6)
		E += d3

		if math.Abs(d3) < KeplerTolerance {
			return E, nil
		}
	}

	return E, errorsmod.Wrapf(types.ErrNonConvergence,
		"kepler solver: M=%g e=%g after %d iterations", meanAnomaly, ecc, KeplerMaxIterations)
}

// TrueAnomaly converts an eccentric anomaly to the true anomaly
func TrueAnomaly(eccAnomaly, ecc float64) float64 {
	return 2.0 * math.Atan2(
		math.Sqrt(1+ecc)*math.Sin(eccAnomaly/2),
		math.Sqrt(1-ecc)*math.Cos(eccAnomaly/2),
	)
}

// Direction returns the unit vector from the star to the planet in the sky frame
func (oe OrbitalElements) Direction() (Vector3, error) {
	if err := oe.Validate(); err != nil {
		return Vector3{}, err
	}

	E, err := SolveKepler(oe.MeanAnomaly, oe.Eccentricity)
	if err != nil {
		return Vector3{}, err
	}
	nu := TrueAnomaly(E, oe.Eccentricity)

	// Orbital plane, rotated into the sky frame
	s, c := math.Sincos(nu)
	dir := Vector3{X: c, Y: s}.
		RotateZ(oe.ArgumentPeriapsis).
		RotateX(oe.Inclination).
		RotateZ(oe.LongitudeAscending)

	return dir.Unit(), nil
}

// PhaseAngle returns the star-planet-observer angle in degrees, 0 at full phase
func (oe OrbitalElements) PhaseAngle() (float64, error) {
	dir, err := oe.Direction()
	if err != nil {
		return 0, err
	}

	cosAlpha := math.Max(-1, math.Min(1, dir.Dot(LineOfSight)))
	return math.Acos(cosAlpha) * 180 / math.Pi, nil
}

// PhaseAngle computes the observed phase angle in degrees. meanAnomaly is in radians,
// inclination and argument of periapsis in degrees.
func PhaseAngle(meanAnomaly, ecc, incDeg, argpDeg float64) (float64, error) {
	return FromDegrees(meanAnomaly, ecc, incDeg, argpDeg).PhaseAngle()
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
