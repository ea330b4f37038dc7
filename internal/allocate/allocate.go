// Package allocate decides which claims win scarce catalog inventory.
// One call is one pass: a sequential fold over claims in strict
// chronological order, with all capacity state held in-memory for the
// duration of the fold. The caller serializes passes per post with a lease.
package allocate

import (
	"sort"
	"time"

	"github.com/dimasraya/live-orders/internal/catalog"
	"github.com/dimasraya/live-orders/internal/ledger"
)

// Claim is one buyer's extracted request. Ephemeral: computed per pass,
// never persisted.
type Claim struct {
	CommentID  string
	AuthorID   string
	AuthorName string
	Code       string
	Requested  int
	CreatedAt  time.Time
}

type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeRejected
	// OutcomeSkipped: the claim's order key already exists in the ledger;
	// its quantity is already counted in the prior summary, so it neither
	// re-allocates nor consumes capacity again.
	OutcomeSkipped
	// OutcomeIgnored: the stream operator's own comment.
	OutcomeIgnored
)

type Reason string

const (
	ReasonUnknownProduct Reason = "unknown product"
	ReasonAlreadyClaimed Reason = "already claimed"
	ReasonSoldOut        Reason = "sold out"
)

type Decision struct {
	Claim    Claim
	Outcome  Outcome
	Quantity int
	Clipped  bool
	Reason   Reason
	Listing  catalog.Listing
}

// Allocate processes claims in ascending (CreatedAt, CommentID) order,
// regardless of input order. The sort is a correctness requirement:
// first-come-first-served fairness depends on it.
//
// Capacity is seeded from prior: remaining stock for a code starts at the
// listing's stock minus what the ledger already holds, and an exclusive
// code with any committed record is closed. This keeps the invariants
// intact for partial inputs (a single webhook comment) and for catalog
// stock edited between passes, where replaying the old claims would
// diverge from what was actually committed.
func Allocate(claims []Claim, snap catalog.Snapshot, prior ledger.Prior, operatorID string) []Decision {
	sorted := make([]Claim, len(claims))
	copy(sorted, claims)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].CommentID < sorted[j].CommentID
	})

	remaining := map[string]int{} // bounded limited-stock codes only
	claimed := map[string]bool{}  // exclusive codes won within this pass

	out := make([]Decision, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, decide(c, snap, prior, operatorID, remaining, claimed))
	}
	return out
}

func decide(c Claim, snap catalog.Snapshot, prior ledger.Prior, operatorID string,
	remaining map[string]int, claimed map[string]bool) Decision {

	if operatorID != "" && c.AuthorID == operatorID {
		return Decision{Claim: c, Outcome: OutcomeIgnored}
	}

	l, ok := snap.Resolve(c.Code)
	if !ok {
		return Decision{Claim: c, Outcome: OutcomeRejected, Reason: ReasonUnknownProduct}
	}
	code := catalog.Normalize(l.Code)

	_, seen := prior.Keys[ledger.Key(c.CommentID, code)]
	if seen {
		return Decision{Claim: c, Outcome: OutcomeSkipped, Listing: l}
	}

	switch l.Category {
	case catalog.CategoryExclusive:
		if claimed[code] || prior.Allocated[code] > 0 {
			return Decision{Claim: c, Outcome: OutcomeRejected, Reason: ReasonAlreadyClaimed, Listing: l}
		}
		claimed[code] = true
		return Decision{Claim: c, Outcome: OutcomeAccepted, Quantity: 1, Listing: l}

	default: // limited-stock
		bounded := l.Stock > 0
		if bounded {
			if _, ok := remaining[code]; !ok {
				rem := l.Stock - prior.Allocated[code]
				if rem < 0 {
					rem = 0
				}
				remaining[code] = rem
			}
		}
		if bounded && remaining[code] == 0 {
			return Decision{Claim: c, Outcome: OutcomeRejected, Reason: ReasonSoldOut, Listing: l}
		}
		q := c.Requested
		clipped := false
		if bounded && q > remaining[code] {
			q = remaining[code]
			clipped = true
		}
		if bounded {
			remaining[code] -= q
		}
		return Decision{Claim: c, Outcome: OutcomeAccepted, Quantity: q, Clipped: clipped, Listing: l}
	}
}
