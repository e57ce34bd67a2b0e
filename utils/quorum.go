package utils

// GetAckMajority returns the 2/3+1 majority for a responder set of the given
// size, capped at the set size. Used when a simple majority of answers is
// enough to trust a remote observation (e.g. whether a genesis already exists).
func GetAckMajority(totalResponders int) int {

	majority := (2 * totalResponders) / 3

	majority += 1

	if majority > totalResponders {
		return totalResponders
	}

	return majority
}
