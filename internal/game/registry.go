package game

import "errors"

// ErrUnknownVehicle is returned when a vehicle handle does not resolve to a live vehicle
var ErrUnknownVehicle = errors.New("unknown vehicle")

type removable interface {
	Removed() bool
}

// compactRemoved drops entries flagged for removal in place, keeping registry order
func compactRemoved[T removable](items []T) []T {
	n := 0
	for _, it := range items {
		if it.Removed() {
			continue
		}
		items[n] = it
		n++
	}
	clear(items[n:])
	return items[:n]
}
