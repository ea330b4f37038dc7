// Package pass orchestrates one allocation pass: lease -> fetch -> extract
// -> resolve -> allocate -> commit -> publish. Store and source dependencies
// are interfaces so the whole pass runs against in-memory fakes in tests.
package pass

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/dimasraya/live-orders/internal/allocate"
	"github.com/dimasraya/live-orders/internal/catalog"
	"github.com/dimasraya/live-orders/internal/events"
	"github.com/dimasraya/live-orders/internal/extract"
	kafkax "github.com/dimasraya/live-orders/internal/kafka"
	"github.com/dimasraya/live-orders/internal/ledger"
	"github.com/dimasraya/live-orders/internal/metrics"
	"github.com/dimasraya/live-orders/internal/source"
)

// ErrLeaseConflict: another pass holds the per-post lease. Retryable, not a
// failure; nothing was read or written.
var ErrLeaseConflict = errors.New("allocation pass already running for post")

const defaultMaxPages = 50

type CatalogStore interface {
	Snapshot(ctx context.Context, postID string) ([]catalog.Listing, error)
}

type LedgerStore interface {
	Prior(ctx context.Context, postID string) (ledger.Prior, error)
	Commit(ctx context.Context, postID string, mode ledger.Mode, recs []ledger.OrderRecord) (int, error)
}

type Lease interface {
	Acquire(ctx context.Context, postID string) (release func(context.Context), ok bool, err error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Summary is the pass result handed back to the glue layer. Skipped folds
// together no-match, catalog-miss, sold-out, already-claimed and
// already-in-ledger; Ignored is operator self-comments and empty text.
type Summary struct {
	Added         int `json:"added"`
	Skipped       int `json:"skipped"`
	Ignored       int `json:"ignored"`
	TotalComments int `json:"total_comments"`
}

type Runner struct {
	Source     source.Source
	Catalog    CatalogStore
	Ledger     LedgerStore
	Lease      Lease
	Producer   Publisher // optional
	Metrics    *metrics.Registry
	OperatorID string
	MaxPages   int
	Service    string
}

// Run fetches the post's full comment snapshot and allocates it.
func (r *Runner) Run(ctx context.Context, postID string, mode ledger.Mode) (Summary, error) {
	release, ok, err := r.Lease.Acquire(ctx, postID)
	if err != nil {
		return Summary{}, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		if r.Metrics != nil {
			r.Metrics.LeaseConflicts.Inc()
		}
		return Summary{}, ErrLeaseConflict
	}
	defer release(context.WithoutCancel(ctx))

	comments, err := r.fetchAll(ctx, postID)
	if err != nil {
		return r.fail(fmt.Errorf("fetch comments: %w", err))
	}
	return r.process(ctx, postID, comments, mode)
}

// RunComments allocates an already-normalized comment batch (webhook path).
// Incremental only makes sense here, but the mode is the caller's call.
func (r *Runner) RunComments(ctx context.Context, postID string, comments []source.Comment, mode ledger.Mode) (Summary, error) {
	release, ok, err := r.Lease.Acquire(ctx, postID)
	if err != nil {
		return Summary{}, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		if r.Metrics != nil {
			r.Metrics.LeaseConflicts.Inc()
		}
		return Summary{}, ErrLeaseConflict
	}
	defer release(context.WithoutCancel(ctx))

	return r.process(ctx, postID, comments, mode)
}

func (r *Runner) fetchAll(ctx context.Context, postID string) ([]source.Comment, error) {
	maxPages := r.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	var all []source.Comment
	cursor := ""
	for page := 0; page < maxPages; page++ {
		p, err := r.Source.FetchPage(ctx, postID, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Comments...)
		if p.NextCursor == "" {
			return all, nil
		}
		cursor = p.NextCursor
	}
	// Hitting the page cap means the snapshot is incomplete; allocating a
	// truncated snapshot would silently starve late claimants.
	return nil, fmt.Errorf("comment pagination exceeded %d pages", maxPages)
}

func (r *Runner) process(ctx context.Context, postID string, comments []source.Comment, mode ledger.Mode) (Summary, error) {
	start := time.Now()

	listings, err := r.Catalog.Snapshot(ctx, postID)
	if err != nil {
		return r.fail(fmt.Errorf("catalog snapshot: %w", err))
	}
	snap := catalog.NewSnapshot(listings)

	// Rebuild starts from a clean slate; otherwise capacity and exclusivity
	// are seeded from what the ledger already holds, so even a
	// single-comment webhook pass sees prior allocations.
	prior := ledger.Prior{}
	if mode != ledger.ModeRebuild {
		prior, err = r.Ledger.Prior(ctx, postID)
		if err != nil {
			return r.fail(fmt.Errorf("prior allocations: %w", err))
		}
	}

	sum := Summary{TotalComments: len(comments)}
	claims := make([]allocate.Claim, 0, len(comments))
	for _, c := range comments {
		if strings.TrimSpace(c.Text) == "" {
			sum.Ignored++
			continue
		}
		res, ok := extract.Extract(c.Text)
		if !ok {
			sum.Skipped++
			continue
		}
		claims = append(claims, allocate.Claim{
			CommentID:  c.ID,
			AuthorID:   c.AuthorID,
			AuthorName: c.AuthorName,
			Code:       res.Code,
			Requested:  res.Quantity,
			CreatedAt:  c.CreatedAt,
		})
	}

	decisions := allocate.Allocate(claims, snap, prior, r.OperatorID)

	var recs []ledger.OrderRecord
	for _, d := range decisions {
		switch d.Outcome {
		case allocate.OutcomeAccepted:
			recs = append(recs, ledger.OrderRecord{
				OrderKey:      ledger.Key(d.Claim.CommentID, catalog.Normalize(d.Listing.Code)),
				PostID:        postID,
				Code:          catalog.Normalize(d.Listing.Code),
				AuthorID:      d.Claim.AuthorID,
				AuthorName:    d.Claim.AuthorName,
				Quantity:      d.Quantity,
				PriceCents:    d.Listing.PriceCents,
				SubtotalCents: d.Quantity * d.Listing.PriceCents,
				Status:        ledger.StatusPending,
				CommentID:     d.Claim.CommentID,
				CreatedAt:     d.Claim.CreatedAt,
			})
		case allocate.OutcomeRejected, allocate.OutcomeSkipped:
			sum.Skipped++
		case allocate.OutcomeIgnored:
			sum.Ignored++
		}
	}

	added, err := r.Ledger.Commit(ctx, postID, mode, recs)
	if err != nil {
		return r.fail(fmt.Errorf("commit ledger: %w", err))
	}
	sum.Added = added

	if r.Producer != nil {
		for _, rec := range recs {
			r.publishPending(rec)
		}
	}

	if r.Metrics != nil {
		r.Metrics.PassesTotal.Inc()
		r.Metrics.OrdersAdded.Add(float64(sum.Added))
		r.Metrics.ClaimsSkipped.Add(float64(sum.Skipped))
		r.Metrics.CommentsIgnored.Add(float64(sum.Ignored))
		r.Metrics.PassDurationSec.Observe(time.Since(start).Seconds())
	}
	return sum, nil
}

func (r *Runner) fail(err error) (Summary, error) {
	if r.Metrics != nil {
		r.Metrics.PassFailures.Inc()
	}
	return Summary{}, err
}

func (r *Runner) publishPending(rec ledger.OrderRecord) {
	ev := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     events.EventOrderPending,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      r.Service,
		CorrelationID: rec.OrderKey,
		Payload: kafkax.MustMarshal(events.OrderPendingPayload{
			OrderKey:      rec.OrderKey,
			PostID:        rec.PostID,
			Code:          rec.Code,
			AuthorID:      rec.AuthorID,
			AuthorName:    rec.AuthorName,
			Quantity:      rec.Quantity,
			PriceCents:    rec.PriceCents,
			SubtotalCents: rec.SubtotalCents,
			CommentID:     rec.CommentID,
		}),
	}
	r.Producer.Publish(events.PartitionKey(rec.OrderKey), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventOrderPending)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
