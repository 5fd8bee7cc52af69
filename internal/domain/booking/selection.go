package booking

// ChooseSlot picks the earliest slot; equal times keep their order in available.
func ChooseSlot(available []Slot) (Slot, bool) {
	if len(available) == 0 {
		return Slot{}, false
	}
	best := available[0]
	for _, s := range available[1:] {
		if s.Minutes < best.Minutes {
			best = s
		}
	}
	return best, true
}

// InWindow reports whether minutes falls inside [start, end].
func InWindow(minutes, start, end int) bool {
	return minutes >= start && minutes <= end
}
