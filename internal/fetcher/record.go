package fetcher

import (
	"strconv"
	"strings"
)

// StackSize encodes the three-valued stackability of an item: not
// stackable, stackable with unknown size, or a concrete stack size.
type StackSize int

const (
	// StackNone marks an item without a stack variant.
	StackNone StackSize = 0
	// StackUnknown marks an item whose stack page exists but whose size
	// could not be read (for example when the stack fetch failed).
	StackUnknown StackSize = -1
)

func (s StackSize) String() string {
	switch {
	case s == StackNone:
		return "No"
	case s < 0:
		return "Yes"
	default:
		return strconv.Itoa(int(s))
	}
}

// ParseStackSize reverses String; unrecognised input maps to StackNone.
func ParseStackSize(v string) StackSize {
	switch strings.TrimSpace(v) {
	case "", "No":
		return StackNone
	case "Yes":
		return StackUnknown
	}
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
		return StackSize(n)
	}
	return StackNone
}

// UnknownName is the sentinel for an unresolved item name.
const UnknownName = "Unknown"

// ReasonNonSellable is the terminal exclusion reason for items flagged
// Exclusive, No Auction, or No Sale.
const ReasonNonSellable = "non-sellable/non-tradeable"

// ItemRecord is one item's state on one server at fetch time.
type ItemRecord struct {
	ItemID          int
	Name            string
	Price           int64
	StackPrice      int64
	SoldPerDay      float64
	StackSoldPerDay float64
	Category        string
	Flags           []string
	StackSize       StackSize

	// StackPriceIsPrimary is true only when the fetched page already
	// showed the stack variant (size badge inline in the name), so Price
	// is a stack price rather than a single-unit price.
	StackPriceIsPrimary bool

	// SkipReason is non-empty for terminal exclusions; no pricing data
	// is populated in that case.
	SkipReason string
}

// Excluded reports whether the record is a terminal exclusion.
func (r *ItemRecord) Excluded() bool {
	return r.SkipReason != ""
}

// Rarity renders the flag set, "Common" when no flags were found.
func (r *ItemRecord) Rarity() string {
	if len(r.Flags) == 0 {
		return "Common"
	}
	return strings.Join(r.Flags, ", ")
}

// HasFlag reports whether a rarity/exclusion flag was resolved.
func (r *ItemRecord) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
