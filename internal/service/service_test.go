package service_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/evetabi/opportunity/internal/config"
	"github.com/evetabi/opportunity/internal/domain"
	"github.com/evetabi/opportunity/internal/repository"
	"github.com/evetabi/opportunity/internal/seed"
	"github.com/evetabi/opportunity/internal/service"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testConfig() *config.Config {
	return &config.Config{
		Engine: config.EngineConfig{
			DefaultExecutionPrice:   dec("0.6"),
			MinExecutionPrice:       dec("0.01"),
			DefaultWindow:           14 * 24 * time.Hour,
			DefaultCollateralSymbol: "USDC",
		},
	}
}

// recordingBroadcaster captures published events.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []domain.MarketEvent
}

func (r *recordingBroadcaster) BroadcastMarketUpdate(evt domain.MarketEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingBroadcaster) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type services struct {
	backend    *repository.MemoryBackend
	repo       *repository.SnapshotRepository
	markets    *service.MarketService
	bids       *service.BidService
	resolution *service.ResolutionService
	settlement *service.SettlementService
	events     *recordingBroadcaster
}

func newServices(t *testing.T) *services {
	t.Helper()
	backend := repository.NewMemoryBackend()
	repo := repository.NewSnapshotRepository(backend, seed.Default(), nil)
	cfg := testConfig()
	s := &services{
		backend:    backend,
		repo:       repo,
		markets:    service.NewMarketService(repo, cfg, nil),
		bids:       service.NewBidService(repo, cfg, nil),
		resolution: service.NewResolutionService(repo, nil),
		settlement: service.NewSettlementService(repo, nil),
		events:     &recordingBroadcaster{},
	}
	s.markets.SetBroadcaster(s.events)
	s.bids.SetBroadcaster(s.events)
	s.resolution.SetBroadcaster(s.events)
	s.settlement.SetBroadcaster(s.events)
	return s
}

func (s *services) createMarket(t *testing.T, labels ...string) *domain.Market {
	t.Helper()
	m, err := s.markets.CreateMarket(context.Background(), service.CreateMarketInput{
		Question:          "Will the grant round close oversubscribed?",
		PenaltyBps:        500,
		OptionLabels:      labels,
		InitialCollateral: dec("250"),
	})
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	return m
}

// ── CreateMarket ──────────────────────────────────────────────────────────────

func TestCreateMarket_Properties(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	before, _ := s.repo.Load(ctx)
	m := s.createMarket(t, "Yes", "No", "Maybe")

	if m.ID != before.NextID {
		t.Errorf("ID = %d, want nextId %d", m.ID, before.NextID)
	}
	if len(m.Options) != 3 {
		t.Errorf("len(Options) = %d, want 3", len(m.Options))
	}
	if m.State != domain.StateTrading || len(m.Bids) != 0 {
		t.Errorf("new market state = %v bids = %d, want Trading/0", m.State, len(m.Bids))
	}
	if m.CollateralSymbol != "USDC" {
		t.Errorf("CollateralSymbol = %q, want USDC", m.CollateralSymbol)
	}
	if m.Description != "Sponsor window with 250 USDC per option and hidden order flow." {
		t.Errorf("Description = %q", m.Description)
	}
	if m.CollateralAddress != "0x0000000000000000000000000000000000000000" {
		t.Errorf("CollateralAddress = %s, want zero address", m.CollateralAddress)
	}
	if m.Options[0].OptionHash == m.Options[1].OptionHash {
		t.Error("option hashes should differ")
	}
	if d := time.Until(m.OpportunityWindowEnd); d < 13*24*time.Hour || d > 14*24*time.Hour {
		t.Errorf("default window ends in %v, want ~14 days", d)
	}

	after, _ := s.repo.Load(ctx)
	if after.Markets[0].ID != m.ID {
		t.Errorf("new market not at head of list, head id = %d", after.Markets[0].ID)
	}
	if after.NextID != before.NextID+1 {
		t.Errorf("NextID = %d, want %d", after.NextID, before.NextID+1)
	}
}

func TestCreateMarket_Untitled(t *testing.T) {
	s := newServices(t)
	m, err := s.markets.CreateMarket(context.Background(), service.CreateMarketInput{OptionLabels: []string{"A"}})
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	if m.Title != "Untitled opportunity window" {
		t.Errorf("Title = %q", m.Title)
	}
	if m.Description != "Sponsor window with 0 USDC per option and hidden order flow." {
		t.Errorf("Description = %q", m.Description)
	}
}

func TestCreateMarket_RejectsBadInput(t *testing.T) {
	s := newServices(t)
	for name, in := range map[string]service.CreateMarketInput{
		"no options":       {PenaltyBps: 100},
		"negative penalty": {PenaltyBps: -1, OptionLabels: []string{"A"}},
		"penalty too high": {PenaltyBps: 10001, OptionLabels: []string{"A"}},
	} {
		if _, err := s.markets.CreateMarket(context.Background(), in); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("%s: err = %v, want ErrInvalidInput", name, err)
		}
	}
}

func TestCreateMarket_StoresAddressesVerbatim(t *testing.T) {
	s := newServices(t)
	m, err := s.markets.CreateMarket(context.Background(), service.CreateMarketInput{
		Question:          "q",
		PenaltyBps:        500,
		OptionLabels:      []string{"A"},
		CollateralAddress: "usdc-token",
		Sponsor:           "alice",
	})
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	if m.CollateralAddress != "usdc-token" || m.Sponsor != "alice" {
		t.Errorf("addresses = %q / %q, want stored verbatim", m.CollateralAddress, m.Sponsor)
	}

	got, err := s.markets.GetMarket(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	if got.CollateralAddress != "usdc-token" || got.Sponsor != "alice" {
		t.Errorf("persisted addresses = %q / %q", got.CollateralAddress, got.Sponsor)
	}
}

// ── End-to-end lifecycle ──────────────────────────────────────────────────────

func TestLifecycle_EndToEnd(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	m := s.createMarket(t, "Yes", "No")
	half := dec("0.5")

	for _, opt := range []int{0, 1} {
		updated, err := s.bids.PlaceBid(ctx, service.PlaceBidRequest{
			MarketID:     m.ID,
			OptionID:     opt,
			CollateralIn: dec("100"),
			MaxPrice:     &half,
		})
		if err != nil {
			t.Fatalf("PlaceBid(%d): %v", opt, err)
		}
		head := updated.Bids[0]
		if !head.YesOut.Equal(dec("200")) {
			t.Errorf("yesOut = %s, want 200", head.YesOut)
		}
		if head.OptionLabel != m.Options[opt].Label {
			t.Errorf("OptionLabel = %q, want %q", head.OptionLabel, m.Options[opt].Label)
		}
		if head.Trader == "" {
			t.Error("trader should be synthesised when absent")
		}
	}

	if _, err := s.resolution.Lock(ctx, m.ID); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	resolved, err := s.resolution.Resolve(ctx, m.ID, 0)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !resolved.SponsorPayout.Equal(dec("5")) {
		t.Errorf("SponsorPayout = %s, want 5.00", resolved.SponsorPayout)
	}

	_, amount, err := s.settlement.ClaimTraderFunds(ctx, m.ID)
	if err != nil {
		t.Fatalf("ClaimTraderFunds: %v", err)
	}
	if !amount.Equal(dec("200")) {
		t.Errorf("trader claim = %s, want 200.00", amount)
	}
	_, amount, _ = s.settlement.ClaimTraderFunds(ctx, m.ID)
	if !amount.IsZero() {
		t.Errorf("second trader claim = %s, want 0", amount)
	}

	_, amount, err = s.settlement.ClaimSponsorPayout(ctx, m.ID)
	if err != nil {
		t.Fatalf("ClaimSponsorPayout: %v", err)
	}
	if !amount.Equal(dec("5")) {
		t.Errorf("sponsor claim = %s, want 5.00", amount)
	}
	final, amount, _ := s.settlement.ClaimSponsorPayout(ctx, m.ID)
	if !amount.IsZero() {
		t.Errorf("second sponsor claim = %s, want 0", amount)
	}
	if final.SponsorPayout == nil || !final.SponsorPayout.IsZero() {
		t.Errorf("SponsorPayout after claim = %v, want 0", final.SponsorPayout)
	}

	want := []domain.EventType{
		domain.EventMarketCreated,
		domain.EventBidPlaced, domain.EventBidPlaced,
		domain.EventMarketLocked, domain.EventMarketResolved,
		domain.EventTraderClaimed, domain.EventTraderClaimed,
		domain.EventSponsorClaimed, domain.EventSponsorClaimed,
	}
	got := s.events.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

// ── Guards ────────────────────────────────────────────────────────────────────

func TestPlaceBid_Rejections(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	m := s.createMarket(t, "Yes", "No")

	for name, tc := range map[string]struct {
		req  service.PlaceBidRequest
		want error
	}{
		"zero collateral": {service.PlaceBidRequest{MarketID: m.ID, CollateralIn: dec("0")}, domain.ErrInvalidCollateral},
		"bad option":      {service.PlaceBidRequest{MarketID: m.ID, OptionID: 5, CollateralIn: dec("10")}, domain.ErrInvalidOption},
		"unknown market":  {service.PlaceBidRequest{MarketID: 999, CollateralIn: dec("10")}, domain.ErrMarketNotFound},
	} {
		if _, err := s.bids.PlaceBid(ctx, tc.req); !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", name, err, tc.want)
		}
	}

	if _, err := s.resolution.Lock(ctx, m.ID); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	_, err := s.bids.PlaceBid(ctx, service.PlaceBidRequest{MarketID: m.ID, CollateralIn: dec("10")})
	if !errors.Is(err, domain.ErrMarketNotTrading) {
		t.Errorf("bid on locked market err = %v, want ErrMarketNotTrading", err)
	}

	got, _ := s.markets.GetMarket(ctx, m.ID)
	if len(got.Bids) != 0 {
		t.Errorf("rejected bids recorded: %d", len(got.Bids))
	}
}

func TestUnknownMarket_LeavesSnapshotUnchanged(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	if _, err := s.markets.ResetToSeed(ctx); err != nil {
		t.Fatalf("ResetToSeed: %v", err)
	}
	before, _ := s.backend.Read(ctx)

	const missing = 4242
	checks := map[string]error{}
	_, checks["GetMarket"] = s.markets.GetMarket(ctx, missing)
	_, checks["PlaceBid"] = s.bids.PlaceBid(ctx, service.PlaceBidRequest{MarketID: missing, CollateralIn: dec("10")})
	_, checks["Lock"] = s.resolution.Lock(ctx, missing)
	_, checks["Resolve"] = s.resolution.Resolve(ctx, missing, 0)
	_, checks["ResolveNo"] = s.resolution.ResolveNo(ctx, missing)

	_, amount, err := s.settlement.ClaimTraderFunds(ctx, missing)
	checks["ClaimTraderFunds"] = err
	if !amount.IsZero() {
		t.Errorf("ClaimTraderFunds amount = %s, want 0", amount)
	}
	_, amount, err = s.settlement.ClaimSponsorPayout(ctx, missing)
	checks["ClaimSponsorPayout"] = err
	if !amount.IsZero() {
		t.Errorf("ClaimSponsorPayout amount = %s, want 0", amount)
	}

	for op, err := range checks {
		if !domain.IsNotFound(err) {
			t.Errorf("%s err = %v, want ErrMarketNotFound", op, err)
		}
	}

	after, _ := s.backend.Read(ctx)
	if !bytes.Equal(before, after) {
		t.Error("operations on an unknown market modified the snapshot")
	}
}

func TestResolve_Guards(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	m := s.createMarket(t, "Yes", "No")

	if _, err := s.resolution.Resolve(ctx, m.ID, 0); !errors.Is(err, domain.ErrMarketNotLocked) {
		t.Errorf("Resolve while trading err = %v, want ErrMarketNotLocked", err)
	}
	first, _ := s.resolution.Lock(ctx, m.ID)
	second, err := s.resolution.Lock(ctx, m.ID)
	if err != nil {
		t.Fatalf("second Lock: %v", err)
	}
	if !second.LockedAt.Equal(*first.LockedAt) {
		t.Errorf("LockedAt moved from %v to %v", first.LockedAt, second.LockedAt)
	}
	if _, err := s.resolution.ResolveNo(ctx, m.ID); err != nil {
		t.Fatalf("ResolveNo: %v", err)
	}
	if _, err := s.resolution.Resolve(ctx, m.ID, 1); !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Errorf("Resolve after ResolveNo err = %v, want ErrAlreadyResolved", err)
	}
	if _, err := s.resolution.Lock(ctx, m.ID); !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Errorf("Lock after resolution err = %v, want ErrAlreadyResolved", err)
	}
}

func TestClaimSponsorPayout_Unresolved(t *testing.T) {
	s := newServices(t)
	m := s.createMarket(t, "Yes")
	got, amount, err := s.settlement.ClaimSponsorPayout(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("ClaimSponsorPayout: %v", err)
	}
	if !amount.IsZero() || got.SponsorPayout != nil {
		t.Errorf("unresolved claim = %s payout = %v, want 0/nil", amount, got.SponsorPayout)
	}
}

// ── Directory ─────────────────────────────────────────────────────────────────

func TestListMarkets_Filters(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	seeded := len(seed.Default().Seed())
	m := s.createMarket(t, "Yes")
	if _, err := s.resolution.Lock(ctx, m.ID); err != nil {
		t.Fatal(err)
	}

	all, err := s.markets.ListMarkets(ctx, "")
	if err != nil {
		t.Fatalf("ListMarkets: %v", err)
	}
	if len(all) != seeded+1 {
		t.Errorf("all = %d, want %d", len(all), seeded+1)
	}
	locked, _ := s.markets.ListMarkets(ctx, domain.FilterLocked)
	if len(locked) != 1 || locked[0].ID != m.ID {
		t.Errorf("locked = %+v, want only market %d", locked, m.ID)
	}
	active, _ := s.markets.ListMarkets(ctx, domain.FilterActive)
	if len(active) != seeded {
		t.Errorf("active = %d, want %d", len(active), seeded)
	}
	if _, err := s.markets.ListMarkets(ctx, "archived"); !errors.Is(err, domain.ErrInvalidFilter) {
		t.Errorf("unknown filter err = %v, want ErrInvalidFilter", err)
	}

	stats, err := s.markets.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != seeded+1 || stats.Locked != 1 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestLockExpired(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	expired, err := s.markets.CreateMarket(ctx, service.CreateMarketInput{
		OptionLabels:         []string{"A"},
		OpportunityWindowEnd: &past,
	})
	if err != nil {
		t.Fatal(err)
	}

	ids, err := s.resolution.LockExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("LockExpired: %v", err)
	}
	if len(ids) != 1 || ids[0] != expired.ID {
		t.Errorf("locked ids = %v, want [%d]", ids, expired.ID)
	}
	ids, _ = s.resolution.LockExpired(ctx, time.Now())
	if len(ids) != 0 {
		t.Errorf("second pass locked %v, want none", ids)
	}
}

func TestResetToSeed(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	s.createMarket(t, "A")

	snap, err := s.markets.ResetToSeed(ctx)
	if err != nil {
		t.Fatalf("ResetToSeed: %v", err)
	}
	if len(snap.Markets) != len(seed.Default().Seed()) {
		t.Errorf("markets after reset = %d", len(snap.Markets))
	}
	types := s.events.types()
	if types[len(types)-1] != domain.EventStateReset {
		t.Errorf("last event = %s, want state_reset", types[len(types)-1])
	}
}
