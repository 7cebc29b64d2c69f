package accounts

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

//go:embed default_chart.yaml
var defaultChartYAML []byte

// ChartNode is one account in a chart file. Children inherit the parent type
// when they omit their own.
type ChartNode struct {
	Code      string      `yaml:"code"`
	Name      string      `yaml:"name"`
	LocalName string      `yaml:"local_name"`
	Type      string      `yaml:"type"`
	Subtype   string      `yaml:"subtype"`
	System    bool        `yaml:"system"`
	Opening   string      `yaml:"opening_balance"`
	Children  []ChartNode `yaml:"children"`
}

// Chart is a parsed chart of accounts file.
type Chart struct {
	Accounts []ChartNode `yaml:"accounts"`
}

// SeedResult summarises a chart import.
type SeedResult struct {
	Created int
	Skipped int
}

// DefaultChart returns the bundled starter chart.
func DefaultChart() (Chart, error) {
	return ParseChart(defaultChartYAML)
}

// LoadChart reads a YAML chart from r.
func LoadChart(r io.Reader) (Chart, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Chart{}, fmt.Errorf("accounts: read chart: %w", err)
	}
	return ParseChart(data)
}

// ParseChart decodes and validates a YAML chart.
func ParseChart(data []byte) (Chart, error) {
	var chart Chart
	if err := yaml.Unmarshal(data, &chart); err != nil {
		return Chart{}, shared.Validationf("parse chart: %v", err)
	}
	if len(chart.Accounts) == 0 {
		return Chart{}, shared.Validationf("chart has no accounts")
	}
	seen := map[string]bool{}
	var check func(nodes []ChartNode, inherited string) error
	check = func(nodes []ChartNode, inherited string) error {
		for _, node := range nodes {
			typ := node.Type
			if typ == "" {
				typ = inherited
			}
			t, ok := ParseAccountType(typ)
			if !ok {
				return shared.Validationf("chart account %s has unknown type %q", node.Code, typ)
			}
			if seen[node.Code] {
				return shared.Validationf("chart repeats code %s", node.Code)
			}
			seen[node.Code] = true
			if _, err := shared.ParseAmount(node.Opening); err != nil {
				return err
			}
			if err := node.input(t, nil).Validate(); err != nil {
				return err
			}
			if err := check(node.Children, typ); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(chart.Accounts, ""); err != nil {
		return Chart{}, err
	}
	return chart, nil
}

func (n ChartNode) input(t AccountType, parentID *int64) CreateAccountInput {
	opening, _ := shared.ParseAmount(n.Opening)
	return CreateAccountInput{
		Code:           strings.TrimSpace(n.Code),
		Name:           n.Name,
		LocalName:      n.LocalName,
		Type:           t,
		Subtype:        Subtype(n.Subtype),
		ParentID:       parentID,
		OpeningBalance: opening,
		IsSystem:       n.System,
	}
}

// SeedChart inserts every chart account whose code does not exist yet. Existing
// codes are left untouched and still act as parents for new children.
func (s *Service) SeedChart(ctx context.Context, chart Chart, actorID int64) (SeedResult, error) {
	var result SeedResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var walk func(nodes []ChartNode, inherited AccountType, parent *Account) error
		walk = func(nodes []ChartNode, inherited AccountType, parent *Account) error {
			for _, node := range nodes {
				t := inherited
				if node.Type != "" {
					t, _ = ParseAccountType(node.Type)
				}
				var parentID *int64
				level := 0
				if parent != nil {
					id := parent.ID
					parentID = &id
					level = parent.Level + 1
				}
				account, err := tx.GetAccountByCode(ctx, strings.TrimSpace(node.Code))
				switch {
				case err == nil:
					result.Skipped++
				case shared.Kind(err) == shared.ErrNotFound:
					in := node.input(t, parentID)
					if err := in.Validate(); err != nil {
						return err
					}
					account, err = tx.InsertAccount(ctx, Account{
						Code:           in.Code,
						Name:           in.Name,
						LocalName:      in.LocalName,
						Type:           in.Type,
						Subtype:        in.Subtype,
						ParentID:       in.ParentID,
						Level:          level,
						OpeningBalance: shared.Round2(in.OpeningBalance),
						IsSystem:       in.IsSystem,
						IsActive:       true,
					})
					if err != nil {
						return err
					}
					result.Created++
				default:
					return err
				}
				if err := walk(node.Children, t, &account); err != nil {
					return err
				}
			}
			return nil
		}
		return walk(chart.Accounts, "", nil)
	})
	if err != nil {
		return SeedResult{}, err
	}
	s.record(ctx, actorID, "chart.seed", 0, map[string]any{"created": result.Created, "skipped": result.Skipped})
	return result, nil
}
