package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/evetabi/opportunity/internal/domain"
	"github.com/shopspring/decimal"
)

// TestExecutionPrice validates the simplified pricing rule.
//
//	price = max(maxPrice ?? 0.6, 0.01)
func TestExecutionPrice(t *testing.T) {
	rule := domain.DefaultPricing()
	p := func(s string) *decimal.Decimal { d := dec(s); return &d }

	for _, tc := range []struct {
		name     string
		maxPrice *decimal.Decimal
		want     string
	}{
		{"absent uses default", nil, "0.6"},
		{"caller bound honoured", p("0.5"), "0.5"},
		{"above default honoured", p("0.9"), "0.9"},
		{"clamped to floor", p("0.001"), "0.01"},
		{"zero clamped", p("0"), "0.01"},
	} {
		got := rule.ExecutionPrice(tc.maxPrice)
		if !got.Equal(dec(tc.want)) {
			t.Errorf("%s: ExecutionPrice = %s, want %s", tc.name, got, tc.want)
		}
	}
}

// TestQuote validates collateral rounding and yesOut minting.
//
//	collateral = round(c, 2), yesOut = max(1, round(collateral/price, 2))
func TestQuote(t *testing.T) {
	rule := domain.DefaultPricing()
	half := dec("0.5")

	collateral, yesOut, err := rule.Quote(dec("100"), &half)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !collateral.Equal(dec("100")) || !yesOut.Equal(dec("200")) {
		t.Errorf("Quote(100 @0.5) = %s/%s, want 100/200", collateral, yesOut)
	}

	// 10.005 rounds to 10.01; 10.01 / 0.6 = 16.6833… → 16.68
	collateral, yesOut, err = rule.Quote(dec("10.005"), nil)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !collateral.Equal(dec("10.01")) {
		t.Errorf("collateral = %s, want 10.01", collateral)
	}
	if !yesOut.Equal(dec("16.68")) {
		t.Errorf("yesOut = %s, want 16.68", yesOut)
	}

	// Tiny fills still mint at least one YES token.
	_, yesOut, err = rule.Quote(dec("0.05"), nil)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !yesOut.Equal(decimal.NewFromInt(1)) {
		t.Errorf("yesOut for 0.05 = %s, want 1", yesOut)
	}
}

func TestQuote_RejectsNonPositive(t *testing.T) {
	rule := domain.DefaultPricing()
	for _, c := range []string{"0", "-5", "0.001"} {
		if _, _, err := rule.Quote(dec(c), nil); !errors.Is(err, domain.ErrInvalidCollateral) {
			t.Errorf("Quote(%s) err = %v, want ErrInvalidCollateral", c, err)
		}
	}
}

// TestSettlementScenario walks the reference lifecycle:
//
//	2 options, 500 bps, two 100-collateral bids at 0.5 on options 0 and 1
//	→ yesOut 200 each; resolve(0) → sponsor payout 5.00;
//	trader claim 200.00; sponsor claim 5.00 then 0.00.
func TestSettlementScenario(t *testing.T) {
	rule := domain.DefaultPricing()
	half := dec("0.5")
	m := newMarket("Yes", "No")

	for i, opt := range []int{0, 1} {
		collateral, yesOut, err := rule.Quote(dec("100"), &half)
		if err != nil {
			t.Fatalf("Quote: %v", err)
		}
		if !yesOut.Equal(dec("200")) {
			t.Errorf("bid %d yesOut = %s, want 200", i, yesOut)
		}
		b := domain.Bid{ID: string(rune('a' + i)), OptionID: opt, CollateralIn: collateral, YesOut: yesOut, Status: domain.BidStatusOpen}
		if err := m.AddBid(b); err != nil {
			t.Fatalf("AddBid: %v", err)
		}
	}

	if err := m.Lock(time.Now()); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := m.Resolve(0); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !m.SponsorPayout.Equal(dec("5")) {
		t.Errorf("SponsorPayout = %s, want 5.00", m.SponsorPayout)
	}

	if got := m.ClaimWinnings(); !got.Equal(dec("200")) {
		t.Errorf("first ClaimWinnings = %s, want 200.00", got)
	}
	if got := m.ClaimWinnings(); !got.IsZero() {
		t.Errorf("second ClaimWinnings = %s, want 0", got)
	}
	for _, b := range m.Bids {
		if b.OptionID == 0 && b.Status != domain.BidStatusClaimed {
			t.Errorf("winning bid status = %s, want claimed", b.Status)
		}
		if b.OptionID == 1 && b.Status != domain.BidStatusLost {
			t.Errorf("losing bid status = %s, want lost", b.Status)
		}
	}

	if got := m.ClaimSponsorPayout(); !got.Equal(dec("5")) {
		t.Errorf("first ClaimSponsorPayout = %s, want 5.00", got)
	}
	if got := m.ClaimSponsorPayout(); !got.IsZero() {
		t.Errorf("second ClaimSponsorPayout = %s, want 0", got)
	}
}

func TestClaimSponsorPayout_Unresolved(t *testing.T) {
	m := newMarket("A")
	if got := m.ClaimSponsorPayout(); !got.IsZero() {
		t.Errorf("ClaimSponsorPayout before resolution = %s, want 0", got)
	}
	if m.SponsorPayout != nil {
		t.Errorf("SponsorPayout = %s, want nil before resolution", m.SponsorPayout)
	}
}

// ── Snapshot normalization ────────────────────────────────────────────────────

func TestSnapshot_Normalize(t *testing.T) {
	s := &domain.Snapshot{
		Markets: []domain.Market{{ID: 4}, {ID: 9, Bids: []domain.Bid{{Status: "bogus"}}}},
		NextID:  2,
	}
	s.Normalize()
	if s.NextID != 10 {
		t.Errorf("NextID = %d, want 10", s.NextID)
	}
	if s.Markets[0].Bids == nil {
		t.Error("Bids should default to an empty slice")
	}
	if s.Markets[1].Bids[0].Status != domain.BidStatusOpen {
		t.Errorf("unknown bid status normalized to %q, want open", s.Markets[1].Bids[0].Status)
	}

	before := *s
	s.Normalize()
	if s.NextID != before.NextID {
		t.Errorf("second Normalize changed NextID %d → %d", before.NextID, s.NextID)
	}
}

func TestSnapshot_Find(t *testing.T) {
	s := &domain.Snapshot{Markets: []domain.Market{{ID: 3}, {ID: 1}}}
	if idx := s.Find(1); idx != 1 {
		t.Errorf("Find(1) = %d, want 1", idx)
	}
	if _, err := s.Market(42); !domain.IsNotFound(err) {
		t.Errorf("Market(42) err = %v, want not found", err)
	}
}
