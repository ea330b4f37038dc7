package catalog

import (
	"strings"
	"time"
)

type Category string

const (
	// CategoryExclusive: one buyer total, quantity fixed at 1.
	CategoryExclusive Category = "exclusive"
	// CategoryLimited: finite shared stock, first come first served,
	// partial fulfillment allowed.
	CategoryLimited Category = "limited-stock"
)

// Listing is one catalog entry announced during a stream.
// Stock 0 means unbounded.
type Listing struct {
	Code       string
	Category   Category
	Name       string
	PriceCents int
	Stock      int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Snapshot is the catalog as seen by one allocation pass, keyed by
// normalized code. Read-only within a pass.
type Snapshot map[string]Listing

// Normalize strips whitespace and upper-cases a code for lookup.
func Normalize(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}

func NewSnapshot(listings []Listing) Snapshot {
	s := make(Snapshot, len(listings))
	for _, l := range listings {
		s[Normalize(l.Code)] = l
	}
	return s
}

// Resolve looks a code up in the snapshot. No store or network access:
// resolution is deterministic within one pass.
func (s Snapshot) Resolve(code string) (Listing, bool) {
	l, ok := s[Normalize(code)]
	return l, ok
}
