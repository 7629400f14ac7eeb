package domain

// Direction is the pair of venues a trade buys on and sells on.
type Direction struct {
	BuyVenue  string
	SellVenue string
}

// String returns a human-readable description of the direction.
func (d Direction) String() string {
	return "buy " + d.BuyVenue + " → sell " + d.SellVenue
}
