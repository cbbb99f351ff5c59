package analysis

// SplitDuration decomposes a total-minutes duration into hours and minutes.
// Negative input yields 0/0; the split is lossless for non-negative totals:
// hours*60 + minutes == total.
func SplitDuration(total int) (hours, minutes int) {
	if total < 0 {
		return 0, 0
	}
	return total / 60, total % 60
}

// CombineDuration is the inverse of SplitDuration. Negative components are
// treated as zero.
func CombineDuration(hours, minutes int) int {
	if hours < 0 {
		hours = 0
	}
	if minutes < 0 {
		minutes = 0
	}
	return hours*60 + minutes
}
