package catalog

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"b001", "B001"},
		{" B 001 ", "B001"},
		{"A010", "A010"},
		{"a\t05", "A05"},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSnapshotResolve(t *testing.T) {
	snap := NewSnapshot([]Listing{
		{Code: "b001", Category: CategoryExclusive, Name: "vintage bag", PriceCents: 150000},
		{Code: "A010", Category: CategoryLimited, Name: "tea set", PriceCents: 3500, Stock: 2},
	})

	l, ok := snap.Resolve("B001")
	if !ok || l.Name != "vintage bag" {
		t.Fatalf("resolve B001: ok=%v l=%+v", ok, l)
	}
	// case-insensitive, whitespace-stripped
	if _, ok := snap.Resolve(" a 010 "); !ok {
		t.Fatalf("resolve with spaces and case should hit")
	}
	if _, ok := snap.Resolve("A999"); ok {
		t.Fatalf("unknown code should miss")
	}
}
