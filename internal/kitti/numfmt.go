package kitti

import (
	"fmt"
	"strconv"
	"strings"
)

// sci formats a matrix entry in C "%e" notation.
func sci(v float64) string {
	return fmt.Sprintf("%e", v)
}

func sciJoin(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = sci(v)
	}
	return strings.Join(parts, " ")
}

// round2 rounds v to two decimals and prints the shortest representation
// of the rounded value, keeping a trailing ".0" on integral values: 0 prints
// as "0.0" and -1.5708 as "-1.57".
func round2(v float64) string {
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	s := strconv.FormatFloat(rounded, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEIN") {
		s += ".0"
	}
	return s
}
