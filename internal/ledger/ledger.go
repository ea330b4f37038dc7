package ledger

import "time"

// OrderRecord is the system of record for one confirmed allocation.
// CreatedAt carries the source comment's timestamp so that re-running a
// pass over an unchanged comment set reproduces identical records.
type OrderRecord struct {
	OrderKey      string    `json:"order_key"`
	PostID        string    `json:"post_id"`
	Code          string    `json:"code"`
	AuthorID      string    `json:"author_id"`
	AuthorName    string    `json:"author_name"`
	Quantity      int       `json:"quantity"`
	PriceCents    int       `json:"price_cents"`
	SubtotalCents int       `json:"subtotal_cents"`
	Status        Status    `json:"status"`
	CommentID     string    `json:"comment_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Key derives the stable order key for a (comment, code) pair. Comment ids
// are platform-unique, so the pair is unique and repeated passes map to the
// same record.
func Key(commentID, code string) string {
	return commentID + ":" + code
}

// Prior summarizes what earlier passes already committed for a post: the
// order keys and the summed allocated quantity per code. Capacity for a new
// pass starts from these real quantities, never from a recomputation, so an
// allocation stays correct when the catalog's stock is edited between
// passes or when a committed claim's comment is no longer in the input.
// The zero value means an empty ledger.
type Prior struct {
	Keys      map[string]struct{}
	Allocated map[string]int
}

// Mode selects how Commit treats records already in the ledger.
type Mode string

const (
	// ModeIncremental inserts missing records and leaves existing ones alone.
	ModeIncremental Mode = "incremental"
	// ModeRebuild wipes all records for the post before inserting. Used when
	// a new livestream post supersedes the previous one; scoped to one post
	// so other posts' unpaid orders survive.
	ModeRebuild Mode = "rebuild"
)
