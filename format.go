package binder

import (
	"math"
	"strconv"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatSize renders a byte count in 1024-based units with at most one
// decimal, e.g. "0 Bytes", "512 Bytes", "1.5 KB", "2 MB".
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	v, i := float64(n), 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*10) / 10
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64) + " " + sizeUnits[i]
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + " " + sizeUnits[i]
}
