package domain_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/evetabi/opportunity/internal/domain"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newMarket(options ...string) *domain.Market {
	m := &domain.Market{ID: 7, PenaltyBps: 500}
	for _, o := range options {
		m.Options = append(m.Options, domain.Option{Label: o})
	}
	return m
}

func bid(id string, option int, collateral, yesOut string) domain.Bid {
	return domain.Bid{
		ID:           id,
		OptionID:     option,
		CollateralIn: dec(collateral),
		YesOut:       dec(yesOut),
		Status:       domain.BidStatusOpen,
	}
}

// ── MarketState codes ─────────────────────────────────────────────────────────

func TestMarketState_JSONCodes(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want domain.MarketState
	}{
		{`"0"`, domain.StateTrading},
		{`"1"`, domain.StateLocked},
		{`"2"`, domain.StateResolvedYes},
		{`3`, domain.StateResolvedNo},
		{`null`, domain.StateTrading},
	} {
		var s domain.MarketState
		if err := json.Unmarshal([]byte(tc.in), &s); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in, err)
		}
		if s != tc.want {
			t.Errorf("unmarshal %s = %v, want %v", tc.in, s, tc.want)
		}
	}

	var s domain.MarketState
	if err := json.Unmarshal([]byte(`"9"`), &s); err == nil {
		t.Error("state code 9 should be rejected")
	}

	out, err := json.Marshal(struct {
		State domain.MarketState `json:"state"`
	}{domain.StateLocked})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"state":"1"}` {
		t.Errorf("marshal = %s, want {\"state\":\"1\"}", out)
	}
}

// ── AddBid ────────────────────────────────────────────────────────────────────

func TestMarket_AddBid_PrependsNewestFirst(t *testing.T) {
	m := newMarket("A", "B")
	if err := m.AddBid(bid("b1", 0, "10", "20")); err != nil {
		t.Fatalf("AddBid b1: %v", err)
	}
	if err := m.AddBid(bid("b2", 1, "10", "20")); err != nil {
		t.Fatalf("AddBid b2: %v", err)
	}
	if m.Bids[0].ID != "b2" || m.Bids[1].ID != "b1" {
		t.Errorf("bids order = [%s %s], want [b2 b1]", m.Bids[0].ID, m.Bids[1].ID)
	}
}

func TestMarket_AddBid_Guards(t *testing.T) {
	m := newMarket("A", "B")
	if err := m.AddBid(bid("x", 2, "10", "20")); !errors.Is(err, domain.ErrInvalidOption) {
		t.Errorf("bid on option 2 err = %v, want ErrInvalidOption", err)
	}
	m.State = domain.StateLocked
	if err := m.AddBid(bid("y", 0, "10", "20")); !errors.Is(err, domain.ErrMarketNotTrading) {
		t.Errorf("bid on locked market err = %v, want ErrMarketNotTrading", err)
	}
	if len(m.Bids) != 0 {
		t.Errorf("rejected bids must not be recorded, got %d", len(m.Bids))
	}
}

// ── Lock ──────────────────────────────────────────────────────────────────────

func TestMarket_Lock_KeepsFirstTimestamp(t *testing.T) {
	m := newMarket("A")
	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := m.Lock(first); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if m.State != domain.StateLocked {
		t.Errorf("state = %v, want Locked", m.State)
	}
	if err := m.Lock(first.Add(time.Hour)); err != nil {
		t.Fatalf("second Lock: %v", err)
	}
	if !m.LockedAt.Equal(first) {
		t.Errorf("LockedAt = %v, want %v", m.LockedAt, first)
	}
}

func TestMarket_Lock_ResolvedRejected(t *testing.T) {
	m := newMarket("A")
	m.State = domain.StateResolvedNo
	if err := m.Lock(time.Now()); !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Errorf("Lock resolved market err = %v, want ErrAlreadyResolved", err)
	}
}

// ── Resolve ───────────────────────────────────────────────────────────────────

func TestMarket_Resolve_PartitionsBids(t *testing.T) {
	m := newMarket("A", "B", "C")
	m.Bids = []domain.Bid{
		bid("b1", 0, "100", "200"),
		bid("b2", 1, "40.5", "81"),
		bid("b3", 2, "19.5", "39"),
		bid("b4", 0, "10", "20"),
	}
	_ = m.Lock(time.Now())

	if err := m.Resolve(0); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	lost := decimal.Zero
	for _, b := range m.Bids {
		switch b.Status {
		case domain.BidStatusWon:
			if b.OptionID != 0 {
				t.Errorf("bid %s on option %d marked won", b.ID, b.OptionID)
			}
		case domain.BidStatusLost:
			if b.OptionID == 0 {
				t.Errorf("bid %s on winning option marked lost", b.ID)
			}
			lost = lost.Add(b.CollateralIn)
		default:
			t.Errorf("bid %s status = %s, want won or lost", b.ID, b.Status)
		}
	}

	want := lost.Mul(m.PenaltyFraction()).Round(2)
	if m.SponsorPayout == nil || !m.SponsorPayout.Equal(want) {
		t.Errorf("SponsorPayout = %v, want %s", m.SponsorPayout, want)
	}
	if !m.SponsorPayout.Equal(dec("3")) {
		t.Errorf("SponsorPayout = %s, want 3 (60 × 5%%)", m.SponsorPayout)
	}
	if m.State != domain.StateResolvedYes || m.WinningOptionID == nil || *m.WinningOptionID != 0 {
		t.Errorf("state = %v winner = %v, want ResolvedYes/0", m.State, m.WinningOptionID)
	}
}

func TestMarket_Resolve_Guards(t *testing.T) {
	m := newMarket("A", "B")
	if err := m.Resolve(0); !errors.Is(err, domain.ErrMarketNotLocked) {
		t.Errorf("Resolve trading market err = %v, want ErrMarketNotLocked", err)
	}
	_ = m.Lock(time.Now())
	if err := m.Resolve(5); !errors.Is(err, domain.ErrInvalidOption) {
		t.Errorf("Resolve(5) err = %v, want ErrInvalidOption", err)
	}
	if err := m.Resolve(1); err != nil {
		t.Fatalf("Resolve(1): %v", err)
	}
	if err := m.Resolve(0); !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Errorf("second Resolve err = %v, want ErrAlreadyResolved", err)
	}
	if *m.WinningOptionID != 1 {
		t.Errorf("WinningOptionID changed to %d", *m.WinningOptionID)
	}
}

func TestMarket_ResolveNo_AllBidsLose(t *testing.T) {
	m := newMarket("A", "B")
	m.PenaltyBps = 1000
	m.Bids = []domain.Bid{bid("b1", 0, "100", "200"), bid("b2", 1, "50", "100")}
	_ = m.Lock(time.Now())

	if err := m.ResolveNo(); err != nil {
		t.Fatalf("ResolveNo: %v", err)
	}
	for _, b := range m.Bids {
		if b.Status != domain.BidStatusLost {
			t.Errorf("bid %s status = %s, want lost", b.ID, b.Status)
		}
	}
	if !m.SponsorPayout.Equal(dec("15")) {
		t.Errorf("SponsorPayout = %s, want 15", m.SponsorPayout)
	}
	if m.WinningOptionID != nil {
		t.Errorf("WinningOptionID = %d, want nil", *m.WinningOptionID)
	}
	if m.State != domain.StateResolvedNo {
		t.Errorf("state = %v, want ResolvedNo", m.State)
	}
}

// ── Filters & stats ───────────────────────────────────────────────────────────

func TestComputeStats(t *testing.T) {
	markets := []domain.Market{
		{State: domain.StateTrading, Bids: []domain.Bid{{}, {}}},
		{State: domain.StateTrading},
		{State: domain.StateLocked},
		{State: domain.StateResolvedYes, Bids: []domain.Bid{{}}},
		{State: domain.StateResolvedNo},
	}
	got := domain.ComputeStats(markets)
	want := domain.MarketStats{Total: 5, Active: 2, Locked: 1, Resolved: 2, Bids: 3}
	if got != want {
		t.Errorf("ComputeStats = %+v, want %+v", got, want)
	}
}

func TestFilter_IsValid(t *testing.T) {
	if !domain.FilterResolved.IsValid() {
		t.Error("resolved filter should be valid")
	}
	if domain.Filter("archived").IsValid() {
		t.Error("archived filter should not be valid")
	}
}

// ── Display helpers ───────────────────────────────────────────────────────────

func TestFormatPenalty(t *testing.T) {
	if got := domain.FormatPenalty(500); got != "5% NO penalty" {
		t.Errorf("FormatPenalty(500) = %q", got)
	}
	if got := domain.FormatPenalty(250); got != "2.5% NO penalty" {
		t.Errorf("FormatPenalty(250) = %q", got)
	}
}

func TestWindowCopy(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := domain.WindowCopy(now.Add(-time.Minute), now); got != "Opportunity window closed" {
		t.Errorf("past window = %q", got)
	}
	if got := domain.WindowCopy(now.Add(5*time.Hour+10*time.Minute), now); got != "5h left" {
		t.Errorf("5h window = %q", got)
	}
	if got := domain.WindowCopy(now.Add(76*time.Hour), now); got != "3d 4h left" {
		t.Errorf("76h window = %q", got)
	}
}
