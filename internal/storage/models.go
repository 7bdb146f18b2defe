package storage

// ItemRow is one persisted (item, server) observation.
type ItemRow struct {
	ItemID          int
	Name            string
	Price           int64
	StackPrice      int64
	SoldPerDay      float64
	StackSoldPerDay float64
	Category        string
	Stackable       string
	Server          string
}

// Key identifies the row for merge purposes.
func (r ItemRow) Key() string {
	return itemKey(r.ItemID, r.Server)
}

// Comparison scopes: a comparison row summarises either single-unit or
// stack prices, never both.
const (
	ScopeUnit  = "unit"
	ScopeStack = "stack"
)

// ComparisonRow is one item's cross-server price summary.
type ComparisonRow struct {
	ItemID          int
	Name            string
	Category        string
	Scope           string
	LowestPrice     int64
	LowestServer    string
	HighestPrice    int64
	HighestServer   string
	AveragePrice    int64
	PriceDifference int64
	ServerCount     int
}

// Key identifies the row for merge purposes.
func (r ComparisonRow) Key() string {
	return itemKey(r.ItemID, r.Scope)
}
