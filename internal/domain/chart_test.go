package domain

import (
	"errors"
	"testing"
)

func TestDefaultChart(t *testing.T) {
	chart, err := DefaultChart()
	if err != nil {
		t.Fatalf("default chart should parse: %v", err)
	}

	var hasCash, hasEquity, hasUncategorized bool
	for _, a := range chart.Accounts {
		acc := Account{Type: a.Type, Subtype: a.Subtype}
		if acc.IsCashLike() {
			hasCash = true
		}
		if a.Subtype == SubtypeOpeningBalance {
			hasEquity = true
		}
		if a.Subtype == SubtypeUncategorized {
			hasUncategorized = true
		}
		if a.NormalBalance != DefaultNormalBalance(a.Type) {
			t.Errorf("account %s: expected default normal balance", a.Code)
		}
	}

	if !hasCash || !hasEquity || !hasUncategorized {
		t.Errorf("expected cash, opening equity and uncategorized accounts, got %+v", chart.Accounts)
	}
}

func TestParseChart(t *testing.T) {
	t.Run("duplicate code", func(t *testing.T) {
		_, err := ParseChart([]byte(`
accounts:
  - {code: "1000", name: Cash, type: asset}
  - {code: "1000", name: Bank, type: asset}
`))
		if !errors.Is(err, ErrDuplicateCode) {
			t.Fatalf("expected ErrDuplicateCode, got %v", err)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := ParseChart([]byte(`
accounts:
  - {code: "1000", name: Cash, type: gold}
`))
		if !errors.Is(err, ErrInvalidAccountType) {
			t.Fatalf("expected ErrInvalidAccountType, got %v", err)
		}
	})

	t.Run("parent must precede child", func(t *testing.T) {
		_, err := ParseChart([]byte(`
accounts:
  - {code: "4010", name: Food Sales, type: revenue, parent: "4000"}
  - {code: "4000", name: Sales, type: revenue}
`))
		if err == nil {
			t.Fatal("expected error for out-of-order parent")
		}
	})

	t.Run("explicit normal balance kept", func(t *testing.T) {
		chart, err := ParseChart([]byte(`
accounts:
  - {code: "1900", name: Accumulated Depreciation, type: asset, normal_balance: credit}
`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if chart.Accounts[0].NormalBalance != NormalCredit {
			t.Errorf("expected credit normal balance, got %s", chart.Accounts[0].NormalBalance)
		}
	})
}
