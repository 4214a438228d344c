/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
)

var sizeUnits = []string{"B", "kB", "MB", "GB", "TB", "PB", "EB"}

func humanReadableSize(bytes int64) string {
	size, unit := float64(bytes), 0
	for size >= 1000 && unit < len(sizeUnits)-1 {
		size /= 1000
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return fmt.Sprintf("%.1f %s", size, sizeUnits[unit])
}
