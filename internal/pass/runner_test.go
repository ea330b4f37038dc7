package pass

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/dimasraya/live-orders/internal/catalog"
	"github.com/dimasraya/live-orders/internal/ledger"
	"github.com/dimasraya/live-orders/internal/source"
)

var t0 = time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

func cmt(id, author, text string, sec int) source.Comment {
	return source.Comment{
		ID:         id,
		Text:       text,
		AuthorID:   author,
		AuthorName: "user " + author,
		CreatedAt:  t0.Add(time.Duration(sec) * time.Second),
	}
}

// fakeSource serves fixed pages; an empty NextCursor on the last one.
type fakeSource struct {
	pages []source.Page
	calls int
	err   error
}

func (f *fakeSource) FetchPage(ctx context.Context, postID, cursor string) (source.Page, error) {
	if f.err != nil {
		return source.Page{}, f.err
	}
	if f.calls >= len(f.pages) {
		return source.Page{}, nil
	}
	p := f.pages[f.calls]
	f.calls++
	return p, nil
}

type fakeCatalog struct {
	listings []catalog.Listing
	err      error
}

func (f *fakeCatalog) Snapshot(ctx context.Context, postID string) ([]catalog.Listing, error) {
	return f.listings, f.err
}

// fakeLedger keeps records per post, keyed like the real store.
type fakeLedger struct {
	records map[string]map[string]ledger.OrderRecord // postID -> orderKey -> record
	commits int
	err     error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: map[string]map[string]ledger.OrderRecord{}}
}

func (f *fakeLedger) Prior(ctx context.Context, postID string) (ledger.Prior, error) {
	if f.err != nil {
		return ledger.Prior{}, f.err
	}
	p := ledger.Prior{Keys: map[string]struct{}{}, Allocated: map[string]int{}}
	for k, r := range f.records[postID] {
		p.Keys[k] = struct{}{}
		p.Allocated[r.Code] += r.Quantity
	}
	return p, nil
}

func (f *fakeLedger) Commit(ctx context.Context, postID string, mode ledger.Mode, recs []ledger.OrderRecord) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.commits++
	if mode == ledger.ModeRebuild {
		delete(f.records, postID)
	}
	if f.records[postID] == nil {
		f.records[postID] = map[string]ledger.OrderRecord{}
	}
	added := 0
	for _, r := range recs {
		if _, ok := f.records[postID][r.OrderKey]; ok {
			continue
		}
		f.records[postID][r.OrderKey] = r
		added++
	}
	return added, nil
}

type fakeLease struct {
	held     bool
	acquired int
	released int
}

func (f *fakeLease) Acquire(ctx context.Context, postID string) (func(context.Context), bool, error) {
	if f.held {
		return nil, false, nil
	}
	f.acquired++
	return func(context.Context) { f.released++ }, true, nil
}

type fakeProducer struct{ published []kafkago.Message }

func (f *fakeProducer) Publish(key, value []byte, headers ...kafkago.Header) {
	f.published = append(f.published, kafkago.Message{Key: key, Value: value, Headers: headers})
}

func listings() []catalog.Listing {
	return []catalog.Listing{
		{Code: "B001", Category: catalog.CategoryExclusive, Name: "one-off bag", PriceCents: 150000},
		{Code: "A010", Category: catalog.CategoryLimited, Name: "tea set", PriceCents: 3500, Stock: 2},
	}
}

func newRunner(src source.Source, cat CatalogStore, led LedgerStore, lease Lease, prod Publisher) *Runner {
	return &Runner{
		Source:     src,
		Catalog:    cat,
		Ledger:     led,
		Lease:      lease,
		Producer:   prod,
		OperatorID: "page",
		Service:    "test",
	}
}

func TestRunEndToEnd(t *testing.T) {
	src := &fakeSource{pages: []source.Page{
		{Comments: []source.Comment{
			cmt("c1", "u1", "A010", 1),      // accepted qty 1
			cmt("c2", "u2", "A010 x2", 2),   // clipped to 1
			cmt("c3", "u3", "A010", 3),      // sold out
			cmt("c4", "page", "A010", 4),    // operator, ignored
			cmt("c5", "u5", "nice live", 5), // no code, skipped
		}, NextCursor: "cur1"},
		{Comments: []source.Comment{
			cmt("c6", "u6", "", 6),     // empty, ignored
			cmt("c7", "u7", "B001", 7), // exclusive winner
		}},
	}}
	led := newFakeLedger()
	lease := &fakeLease{}
	prod := &fakeProducer{}
	r := newRunner(src, &fakeCatalog{listings: listings()}, led, lease, prod)

	sum, err := r.Run(context.Background(), "post_1", ledger.ModeIncremental)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := Summary{Added: 3, Skipped: 2, Ignored: 2, TotalComments: 7}
	if sum != want {
		t.Fatalf("summary = %+v, want %+v", sum, want)
	}

	// capacity conservation: ledger sum for A010 is exactly the stock
	total := 0
	for _, rec := range led.records["post_1"] {
		if rec.Code == "A010" {
			total += rec.Quantity
		}
	}
	if total != 2 {
		t.Fatalf("A010 allocated %d, stock is 2", total)
	}

	clipped := led.records["post_1"][ledger.Key("c2", "A010")]
	if clipped.Quantity != 1 || clipped.SubtotalCents != 3500 {
		t.Fatalf("clipped record wrong: %+v", clipped)
	}

	if len(prod.published) != 3 {
		t.Fatalf("want 3 pending events, got %d", len(prod.published))
	}
	if lease.acquired != 1 || lease.released != 1 {
		t.Fatalf("lease acquired=%d released=%d", lease.acquired, lease.released)
	}
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	pages := func() *fakeSource {
		return &fakeSource{pages: []source.Page{{Comments: []source.Comment{
			cmt("c1", "u1", "A010 x2", 1),
			cmt("c2", "u2", "B001", 2),
		}}}}
	}
	led := newFakeLedger()
	r := newRunner(pages(), &fakeCatalog{listings: listings()}, led, &fakeLease{}, nil)

	sum1, err := r.Run(context.Background(), "post_1", ledger.ModeIncremental)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	after1 := map[string]ledger.OrderRecord{}
	for k, v := range led.records["post_1"] {
		after1[k] = v
	}

	r.Source = pages()
	sum2, err := r.Run(context.Background(), "post_1", ledger.ModeIncremental)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if sum1.Added != 2 || sum2.Added != 0 {
		t.Fatalf("added: first=%d second=%d", sum1.Added, sum2.Added)
	}
	if !reflect.DeepEqual(after1, led.records["post_1"]) {
		t.Fatalf("ledger changed on re-run:\nbefore %+v\nafter  %+v", after1, led.records["post_1"])
	}
}

func TestRunLeaseConflict(t *testing.T) {
	src := &fakeSource{}
	r := newRunner(src, &fakeCatalog{listings: listings()}, newFakeLedger(), &fakeLease{held: true}, nil)

	_, err := r.Run(context.Background(), "post_1", ledger.ModeIncremental)
	if !errors.Is(err, ErrLeaseConflict) {
		t.Fatalf("want ErrLeaseConflict, got %v", err)
	}
	if src.calls != 0 {
		t.Fatalf("a refused pass must not fetch anything")
	}
}

func TestRunFetchFailureAbortsBeforeWrite(t *testing.T) {
	led := newFakeLedger()
	r := newRunner(&fakeSource{err: errors.New("upstream down")},
		&fakeCatalog{listings: listings()}, led, &fakeLease{}, nil)

	if _, err := r.Run(context.Background(), "post_1", ledger.ModeIncremental); err == nil {
		t.Fatalf("want error")
	}
	if led.commits != 0 {
		t.Fatalf("failed pass must leave the ledger untouched")
	}
}

func TestRunCatalogFailureAbortsBeforeWrite(t *testing.T) {
	led := newFakeLedger()
	r := newRunner(&fakeSource{pages: []source.Page{{Comments: []source.Comment{cmt("c1", "u1", "A010", 1)}}}},
		&fakeCatalog{err: errors.New("store down")}, led, &fakeLease{}, nil)

	if _, err := r.Run(context.Background(), "post_1", ledger.ModeIncremental); err == nil {
		t.Fatalf("want error")
	}
	if led.commits != 0 {
		t.Fatalf("failed pass must leave the ledger untouched")
	}
}

func TestRunPaginationCap(t *testing.T) {
	// Every page points to a next one; the cap must abort the pass instead
	// of allocating a truncated snapshot.
	src := &fakeSource{pages: []source.Page{
		{NextCursor: "a"}, {NextCursor: "b"}, {NextCursor: "c"},
	}}
	r := newRunner(src, &fakeCatalog{listings: listings()}, newFakeLedger(), &fakeLease{}, nil)
	r.MaxPages = 2

	if _, err := r.Run(context.Background(), "post_1", ledger.ModeIncremental); err == nil {
		t.Fatalf("want pagination cap error")
	}
}

func TestRebuildScopedToPost(t *testing.T) {
	led := newFakeLedger()
	led.records["post_2"] = map[string]ledger.OrderRecord{
		"keep:A010": {OrderKey: "keep:A010", PostID: "post_2", Code: "A010", Quantity: 1, Status: ledger.StatusPending},
	}
	// Stale record for post_1 that the rebuild should wipe.
	led.records["post_1"] = map[string]ledger.OrderRecord{
		"old:A010": {OrderKey: "old:A010", PostID: "post_1", Code: "A010", Quantity: 2, Status: ledger.StatusPending},
	}

	src := &fakeSource{pages: []source.Page{{Comments: []source.Comment{cmt("c1", "u1", "A010", 1)}}}}
	r := newRunner(src, &fakeCatalog{listings: listings()}, led, &fakeLease{}, nil)

	sum, err := r.Run(context.Background(), "post_1", ledger.ModeRebuild)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Added != 1 {
		t.Fatalf("added=%d", sum.Added)
	}
	if _, ok := led.records["post_1"]["old:A010"]; ok {
		t.Fatalf("rebuild kept a stale record")
	}
	if _, ok := led.records["post_2"]["keep:A010"]; !ok {
		t.Fatalf("rebuild for post_1 touched post_2")
	}
}

func TestRunCommentsSeesPriorAllocations(t *testing.T) {
	// Prior passes sold A010 out (stock 2) and placed the exclusive B001.
	// A webhook pass carrying only the new comments must reject both, even
	// though none of the committed claims' comments are in its input.
	led := newFakeLedger()
	led.records["post_1"] = map[string]ledger.OrderRecord{
		ledger.Key("c1", "A010"): {OrderKey: ledger.Key("c1", "A010"), PostID: "post_1", Code: "A010",
			Quantity: 2, Status: ledger.StatusPending},
		ledger.Key("c0", "B001"): {OrderKey: ledger.Key("c0", "B001"), PostID: "post_1", Code: "B001",
			Quantity: 1, Status: ledger.StatusPending},
	}
	r := newRunner(&fakeSource{}, &fakeCatalog{listings: listings()}, led, &fakeLease{}, nil)

	sum, err := r.RunComments(context.Background(), "post_1",
		[]source.Comment{cmt("c7", "u7", "A010", 7), cmt("c8", "u8", "B001", 8)}, ledger.ModeIncremental)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Added != 0 || sum.Skipped != 2 {
		t.Fatalf("summary = %+v, want 0 added / 2 skipped", sum)
	}

	total := 0
	for _, rec := range led.records["post_1"] {
		if rec.Code == "A010" {
			total += rec.Quantity
		}
	}
	if total != 2 {
		t.Fatalf("A010 ledger total %d exceeds stock 2", total)
	}
	b001 := 0
	for _, rec := range led.records["post_1"] {
		if rec.Code == "B001" {
			b001++
		}
	}
	if b001 != 1 {
		t.Fatalf("exclusive B001 has %d records, want 1", b001)
	}
}

func TestIncrementalPassAfterStockEdit(t *testing.T) {
	// First pass fills the stock of 2; the operator then raises stock to 3.
	// The follow-up pass must grant only the one newly freed unit.
	cat := &fakeCatalog{listings: listings()}
	led := newFakeLedger()
	r := newRunner(&fakeSource{pages: []source.Page{{Comments: []source.Comment{
		cmt("c1", "u1", "A010 x2", 1),
	}}}}, cat, led, &fakeLease{}, nil)

	if _, err := r.Run(context.Background(), "post_1", ledger.ModeIncremental); err != nil {
		t.Fatalf("first run: %v", err)
	}

	cat.listings = []catalog.Listing{
		{Code: "A010", Category: catalog.CategoryLimited, Name: "tea set", PriceCents: 3500, Stock: 3},
	}
	r.Source = &fakeSource{pages: []source.Page{{Comments: []source.Comment{
		cmt("c1", "u1", "A010 x2", 1),
		cmt("c2", "u2", "A010 x2", 2),
	}}}}

	sum, err := r.Run(context.Background(), "post_1", ledger.ModeIncremental)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sum.Added != 1 {
		t.Fatalf("added=%d, want 1", sum.Added)
	}

	total := 0
	for _, rec := range led.records["post_1"] {
		total += rec.Quantity
	}
	if total != 3 {
		t.Fatalf("ledger total %d, want 3 (new stock)", total)
	}
	clipped := led.records["post_1"][ledger.Key("c2", "A010")]
	if clipped.Quantity != 1 {
		t.Fatalf("second buyer should get the single freed unit: %+v", clipped)
	}
}

func TestRunCommentsWebhookPath(t *testing.T) {
	led := newFakeLedger()
	r := newRunner(&fakeSource{}, &fakeCatalog{listings: listings()}, led, &fakeLease{}, nil)

	sum, err := r.RunComments(context.Background(), "post_1",
		[]source.Comment{cmt("c1", "u1", "B001", 1)}, ledger.ModeIncremental)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Added != 1 {
		t.Fatalf("added=%d", sum.Added)
	}
	if _, ok := led.records["post_1"][ledger.Key("c1", "B001")]; !ok {
		t.Fatalf("webhook comment not committed")
	}
}
