// Package seed provides the fixed catalog of markets that a fresh or reset
// store starts from.
package seed

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/evetabi/opportunity/internal/domain"
)

//go:embed catalog.json
var defaultCatalog []byte

// Entry describes one seeded market. Seeded markets always start in
// Trading with no bids.
type Entry struct {
	ID                   int             `json:"id"                   toml:"id"`
	MarketAddress        string          `json:"marketAddress"        toml:"market_address"`
	QuestionHash         string          `json:"questionHash"         toml:"question_hash"`
	Title                string          `json:"title"                toml:"title"`
	Description          string          `json:"description"          toml:"description"`
	OpportunityWindowEnd time.Time       `json:"opportunityWindowEnd" toml:"opportunity_window_end"`
	PenaltyBps           int             `json:"penaltyBps"           toml:"penalty_bps"`
	Sponsor              string          `json:"sponsor"              toml:"sponsor"`
	CollateralSymbol     string          `json:"collateralSymbol"     toml:"collateral_symbol"`
	CollateralAddress    string          `json:"collateralAddress"    toml:"collateral_address"`
	Options              []domain.Option `json:"options"              toml:"options"`
}

// Catalog is an ordered list of seed entries.
type Catalog struct {
	Markets []Entry `toml:"markets"`
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := parseJSON(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("seed: embedded catalog: %v", err))
	}
	return c
}

// LoadFile reads a catalog from disk. Files ending in .toml use a
// [[markets]] table array; anything else is parsed as a JSON array.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed.LoadFile: %w", err)
	}

	var c *Catalog
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		c = &Catalog{}
		if _, err := toml.Decode(string(data), c); err != nil {
			return nil, fmt.Errorf("seed.LoadFile: toml: %w", err)
		}
	} else {
		c, err = parseJSON(data)
		if err != nil {
			return nil, fmt.Errorf("seed.LoadFile: %w", err)
		}
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("seed.LoadFile: %s: %w", path, err)
	}
	return c, nil
}

func parseJSON(data []byte) (*Catalog, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("json: %w", err)
	}
	return &Catalog{Markets: entries}, nil
}

func (c *Catalog) validate() error {
	seen := make(map[int]bool, len(c.Markets))
	for _, e := range c.Markets {
		if seen[e.ID] {
			return fmt.Errorf("duplicate market id %d", e.ID)
		}
		seen[e.ID] = true
		if len(e.Options) == 0 {
			return fmt.Errorf("market %d: %w", e.ID, domain.ErrInvalidInput)
		}
		if e.PenaltyBps < 0 || e.PenaltyBps > domain.MaxPenaltyBps {
			return fmt.Errorf("market %d: penalty %d bps: %w", e.ID, e.PenaltyBps, domain.ErrInvalidInput)
		}
	}
	return nil
}

// Seed returns a fresh copy of the catalog as Trading markets. Callers may
// mutate the result freely.
func (c *Catalog) Seed() []domain.Market {
	markets := make([]domain.Market, 0, len(c.Markets))
	for _, e := range c.Markets {
		opts := make([]domain.Option, len(e.Options))
		copy(opts, e.Options)
		symbol := e.CollateralSymbol
		if symbol == "" {
			symbol = "USDC"
		}
		markets = append(markets, domain.Market{
			ID:                   e.ID,
			State:                domain.StateTrading,
			MarketAddress:        e.MarketAddress,
			QuestionHash:         e.QuestionHash,
			Title:                e.Title,
			Description:          e.Description,
			OpportunityWindowEnd: e.OpportunityWindowEnd.UTC(),
			PenaltyBps:           e.PenaltyBps,
			Sponsor:              e.Sponsor,
			CollateralSymbol:     symbol,
			CollateralAddress:    e.CollateralAddress,
			Options:              opts,
			Bids:                 []domain.Bid{},
		})
	}
	return markets
}

// Snapshot returns the seeded state with NextID set past the highest id.
func (c *Catalog) Snapshot() domain.Snapshot {
	s := domain.Snapshot{Markets: c.Seed()}
	s.Normalize()
	return s
}
