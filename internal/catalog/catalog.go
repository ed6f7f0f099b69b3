// Package catalog holds the built-in charity list and the starter ledger
// given to new accounts.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tzedaka/maaser/internal/model"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the parsed catalog file.
type Catalog struct {
	Charities []model.Charity `yaml:"charities"`
	Starter   Starter         `yaml:"starter"`
}

// Starter is the sample data seeded into a fresh ledger.
type Starter struct {
	Transactions []StarterTransaction `yaml:"transactions"`
	Donations    []StarterDonation    `yaml:"donations"`
}

// StarterTransaction is dated relative to the seeding day.
type StarterTransaction struct {
	Description string          `yaml:"description"`
	Amount      decimal.Decimal `yaml:"amount"`
	Account     string          `yaml:"account"`
	Category    string          `yaml:"category"`
	DaysAgo     int             `yaml:"days_ago"`
}

// StarterDonation is dated relative to the seeding day.
type StarterDonation struct {
	CharityName string          `yaml:"charity_name"`
	Amount      decimal.Decimal `yaml:"amount"`
	Notes       string          `yaml:"notes"`
	DaysAgo     int             `yaml:"days_ago"`
}

// Default returns the embedded catalog. It panics if the embedded file is
// malformed, which is a build defect.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded catalog invalid: %v", err))
	}
	return c
}

// Parse decodes and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	seen := make(map[string]bool, len(c.Charities))
	for _, ch := range c.Charities {
		if ch.ID == "" || ch.Name == "" {
			return nil, fmt.Errorf("charity missing id or name: %+v", ch)
		}
		if seen[ch.ID] {
			return nil, fmt.Errorf("duplicate charity id %q", ch.ID)
		}
		seen[ch.ID] = true
	}
	for _, t := range c.Starter.Transactions {
		if !t.Amount.IsPositive() || t.Description == "" {
			return nil, fmt.Errorf("invalid starter transaction %q", t.Description)
		}
	}
	for _, d := range c.Starter.Donations {
		if !d.Amount.IsPositive() || d.CharityName == "" {
			return nil, fmt.Errorf("invalid starter donation %q", d.CharityName)
		}
	}

	return &c, nil
}

// SortedCharities returns recommended charities first, then by name.
func (c *Catalog) SortedCharities() []model.Charity {
	out := make([]model.Charity, len(c.Charities))
	copy(out, c.Charities)
	SortCharities(out)
	return out
}

// SortCharities orders charities recommended first, then by name.
func SortCharities(list []model.Charity) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].IsRecommended != list[j].IsRecommended {
			return list[i].IsRecommended
		}
		return list[i].Name < list[j].Name
	})
}

// StarterTransactions materializes the starter income for userID as of now.
// IDs and timestamps are left for the caller to assign.
func (c *Catalog) StarterTransactions(userID string, now time.Time) []*model.Transaction {
	out := make([]*model.Transaction, 0, len(c.Starter.Transactions))
	for _, t := range c.Starter.Transactions {
		out = append(out, &model.Transaction{
			UserID:      userID,
			Date:        model.NewDate(now.AddDate(0, 0, -t.DaysAgo)),
			Description: t.Description,
			Amount:      t.Amount,
			Account:     t.Account,
			Category:    t.Category,
		})
	}
	return out
}

// StarterDonations materializes the starter donations for userID as of now.
func (c *Catalog) StarterDonations(userID string, now time.Time) []*model.Donation {
	out := make([]*model.Donation, 0, len(c.Starter.Donations))
	for _, d := range c.Starter.Donations {
		out = append(out, &model.Donation{
			UserID:      userID,
			Date:        model.NewDate(now.AddDate(0, 0, -d.DaysAgo)),
			CharityName: d.CharityName,
			Amount:      d.Amount,
			Notes:       d.Notes,
		})
	}
	return out
}
