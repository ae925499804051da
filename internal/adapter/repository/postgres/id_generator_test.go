package postgres

import (
	"sort"
	"testing"

	"github.com/iho/tableledger/internal/domain"
)

func TestULIDGeneratorIsMonotonic(t *testing.T) {
	g := NewULIDGenerator()

	ids := make([]string, 1000)
	for i := range ids {
		ids[i] = g.Generate()
	}

	if !sort.StringsAreSorted(ids) {
		t.Fatalf("expected ids in generation order")
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
		if err := domain.ValidateID(id); err != nil {
			t.Fatalf("generated id %s is not a valid ULID: %v", id, err)
		}
	}
}
