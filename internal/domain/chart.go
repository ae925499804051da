package domain

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed chart.yaml
var defaultChartYAML []byte

// ChartAccount is one account in a chart-of-accounts template.
type ChartAccount struct {
	Code          string        `yaml:"code"`
	Name          string        `yaml:"name"`
	Type          AccountType   `yaml:"type"`
	Subtype       string        `yaml:"subtype"`
	NormalBalance NormalBalance `yaml:"normal_balance"`
	ParentCode    string        `yaml:"parent"`
}

// ChartTemplate is a seedable chart of accounts.
type ChartTemplate struct {
	Accounts []ChartAccount `yaml:"accounts"`
}

// DefaultChart returns the built-in restaurant chart.
func DefaultChart() (*ChartTemplate, error) {
	return ParseChart(defaultChartYAML)
}

// LoadChart reads a chart template from a YAML file.
func LoadChart(path string) (*ChartTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chart template: %w", err)
	}
	return ParseChart(data)
}

// ParseChart decodes and validates a YAML chart template. Parents must be
// listed before their children.
func ParseChart(data []byte) (*ChartTemplate, error) {
	var chart ChartTemplate
	if err := yaml.Unmarshal(data, &chart); err != nil {
		return nil, fmt.Errorf("failed to parse chart template: %w", err)
	}

	seen := make(map[string]bool, len(chart.Accounts))
	for i := range chart.Accounts {
		a := &chart.Accounts[i]
		if a.NormalBalance == "" {
			a.NormalBalance = DefaultNormalBalance(a.Type)
		}
		acc := Account{Code: a.Code, Name: a.Name, Type: a.Type, NormalBalance: a.NormalBalance}
		if err := acc.Validate(); err != nil {
			return nil, fmt.Errorf("chart account %q: %w", a.Code, err)
		}
		if seen[a.Code] {
			return nil, fmt.Errorf("chart account %q: %w", a.Code, ErrDuplicateCode)
		}
		if a.ParentCode != "" && !seen[a.ParentCode] {
			return nil, fmt.Errorf("chart account %q: parent %q must precede it", a.Code, a.ParentCode)
		}
		seen[a.Code] = true
	}

	return &chart, nil
}
