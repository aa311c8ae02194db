package testing

// Pairs joins the first user id with every other one, e.g. [1, 2, 3] -> [[1,2], [1,3]].
// Less than two ids produce no pairs.
func Pairs(userIDs []int64) [][2]int64 {
	if len(userIDs) < 2 {
		return nil
	}
	pairs := make([][2]int64, 0, len(userIDs)-1)
	for i := 1; i < len(userIDs); i++ {
		pairs = append(pairs, [2]int64{userIDs[0], userIDs[i]})
	}

	return pairs
}
