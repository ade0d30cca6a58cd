package scoring

// Combine is the objective maximized by the parameter search.
func Combine(utility UtilityResult, privacy float64) float64 {
	if !utility.Accepted {
		return 0
	}
	return privacy
}
