package spectrum

import "strconv"

func formatR(R float64) string {
	return strconv.FormatFloat(R, 'f', -1, 64)
}

// ResolutionSuffix returns the "-R{R}" suffix used in spectrum artifact names
func ResolutionSuffix(R float64) string {
	return "-R" + formatR(R)
}
