package tokens

// SplitBudget divides a total token budget across candidate lists by
// ratio. Shares are floored; any remainder from flooring is assigned to
// the first ratio so the shares always sum to total.
func SplitBudget(total int, ratios ...float64) []int {
	shares := make([]int, len(ratios))
	if total <= 0 || len(ratios) == 0 {
		return shares
	}

	assigned := 0
	for i, r := range ratios {
		if r < 0 {
			r = 0
		}
		shares[i] = int(float64(total) * r)
		assigned += shares[i]
	}
	if rest := total - assigned; rest > 0 {
		shares[0] += rest
	}
	return shares
}
