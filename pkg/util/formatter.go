// Package util holds small presentation helpers shared by CLI-facing
// code - the grid-result analogue of formatting a netlist analyzer's
// node voltages and branch currents, retargeted to per-unit phasors
// and SI-scaled physical quantities.
package util

import (
	"fmt"
	"math"
)

// FormatValueFactor renders value with an SI magnitude prefix and unit
// suffix, e.g. FormatValueFactor(0.0123, "A") -> "12.300 mA".
func FormatValueFactor(value float64, unit string) string {
	absValue := math.Abs(value)
	switch {
	case absValue >= 1:
		return fmt.Sprintf("%.3f %s", value, unit)
	case absValue >= 1e-3:
		return fmt.Sprintf("%.3f m%s", value*1e3, unit)
	case absValue >= 1e-6:
		return fmt.Sprintf("%.3f u%s", value*1e6, unit)
	case absValue >= 1e-9:
		return fmt.Sprintf("%.3f n%s", value*1e9, unit)
	case absValue >= 1e-12:
		return fmt.Sprintf("%.3f p%s", value*1e12, unit)
	default:
		return fmt.Sprintf("%.3e %s", value, unit)
	}
}

// FormatMagnitude renders a phasor magnitude, switching to scientific
// notation outside the "normal" per-unit range.
func FormatMagnitude(value float64) string {
	if value >= 1000 || (value < 0.001 && value != 0) {
		return fmt.Sprintf("%8.2e", value)
	}
	return fmt.Sprintf("%8.3g", value)
}

// FormatPhaseDeg renders an angle already in degrees.
func FormatPhaseDeg(value float64) string {
	return fmt.Sprintf("%6.1f", value)
}

// FormatPhasor renders name=magnitude<phase_deg, the per-bus/per-branch
// line shape the CLI prints for every phasor result.
func FormatPhasor(name string, magnitude, phaseRad float64) string {
	return fmt.Sprintf("%s=%s<%sdeg", name, FormatMagnitude(magnitude), FormatPhaseDeg(phaseRad*180/math.Pi))
}
