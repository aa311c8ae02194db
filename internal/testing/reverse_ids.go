package testing

// ReverseIDs returns reversed copy of ids, used to compare oldest-first results with newest-first expectations
func ReverseIDs(ids []int64) []int64 {
	reversed := make([]int64, len(ids))
	for i, id := range ids {
		reversed[len(ids)-1-i] = id
	}

	return reversed
}
