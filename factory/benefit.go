/*
Package factory provides JSON to Go benefit template conversion.

PURPOSE:
  Converts JSON benefit template definitions into payroll.BenefitTemplate
  values. HR defines signing-bonus and end-of-service amounts in a file and
  the server loads them at startup; no code change is needed to adjust an
  amount.

JSON SCHEMA:
  {
    "templates": [
      {
        "id": "signing-bonus",
        "name": "Signing Bonus",
        "kind": "SIGNING_BONUS",
        "default_amount": "2000.00",
        "description": "Paid with the first payroll"
      }
    ]
  }

  A bare array of templates is accepted too. default_amount may be a JSON
  number or a decimal string.

USAGE:
  f := factory.NewBenefitFactory()
  templates, err := f.LoadFile("config/benefits.json")

SEE ALSO:
  - payroll/templates.go: Go-based preset templates
  - config/config.go: payroll.benefit_templates_file
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// BenefitTemplateJSON is the JSON representation of a template.
type BenefitTemplateJSON struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Kind          string          `json:"kind"`
	DefaultAmount decimal.Decimal `json:"default_amount"`
	Description   string          `json:"description,omitempty"`
}

// CatalogJSON is a file of templates.
type CatalogJSON struct {
	Templates []BenefitTemplateJSON `json:"templates"`
}

// =============================================================================
// FACTORY
// =============================================================================

type BenefitFactory struct{}

func NewBenefitFactory() *BenefitFactory {
	return &BenefitFactory{}
}

// ParseTemplate converts one JSON object.
func (f *BenefitFactory) ParseTemplate(jsonStr string) (*payroll.BenefitTemplate, error) {
	var tj BenefitTemplateJSON
	if err := json.Unmarshal([]byte(jsonStr), &tj); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return f.FromJSON(tj)
}

// ParseCatalog converts a catalog document or a bare array.
func (f *BenefitFactory) ParseCatalog(data []byte) ([]payroll.BenefitTemplate, error) {
	var items []BenefitTemplateJSON
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	} else {
		var cat CatalogJSON
		if err := json.Unmarshal(trimmed, &cat); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		items = cat.Templates
	}

	seen := make(map[string]bool, len(items))
	out := make([]payroll.BenefitTemplate, 0, len(items))
	for i, tj := range items {
		t, err := f.FromJSON(tj)
		if err != nil {
			return nil, fmt.Errorf("template %d: %w", i, err)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("template %d: duplicate id %q", i, t.ID)
		}
		seen[t.ID] = true
		out = append(out, *t)
	}
	return out, nil
}

// LoadFile reads and parses a catalog file.
func (f *BenefitFactory) LoadFile(path string) ([]payroll.BenefitTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read benefit templates: %w", err)
	}
	return f.ParseCatalog(data)
}

// FromJSON validates and converts a template.
func (f *BenefitFactory) FromJSON(tj BenefitTemplateJSON) (*payroll.BenefitTemplate, error) {
	if strings.TrimSpace(tj.ID) == "" {
		return nil, fmt.Errorf("id is required")
	}
	kind := payroll.BenefitKind(strings.ToUpper(strings.TrimSpace(tj.Kind)))
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown kind %q (want SIGNING_BONUS, TERMINATION or RESIGNATION)", tj.Kind)
	}
	if tj.DefaultAmount.IsNegative() {
		return nil, fmt.Errorf("default_amount must not be negative")
	}

	name := strings.TrimSpace(tj.Name)
	if name == "" {
		name = tj.ID
	}
	return &payroll.BenefitTemplate{
		ID:            strings.TrimSpace(tj.ID),
		Name:          name,
		Kind:          kind,
		DefaultAmount: generic.MoneyOf(tj.DefaultAmount),
		Description:   tj.Description,
	}, nil
}

// ToJSON converts a template back to its JSON form.
func (f *BenefitFactory) ToJSON(t payroll.BenefitTemplate) BenefitTemplateJSON {
	return BenefitTemplateJSON{
		ID:            t.ID,
		Name:          t.Name,
		Kind:          string(t.Kind),
		DefaultAmount: t.DefaultAmount.Decimal,
		Description:   t.Description,
	}
}
