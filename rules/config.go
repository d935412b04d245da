package rules

import (
	"fmt"

	"github.com/heibot/chatguard"
)

// Def is an operator-defined rule as it appears in configuration.
type Def struct {
	ID          string `yaml:"id" json:"id"`
	Category    string `yaml:"category" json:"category"`
	Severity    string `yaml:"severity" json:"severity"`
	Regex       string `yaml:"regex" json:"regex"`
	Mask        string `yaml:"mask" json:"mask"`
	Description string `yaml:"description" json:"description"`
}

// Compile validates and compiles rule definitions. Severity defaults to the
// category's default risk and mask to fixed_token (none for advisory rules).
func Compile(defs []Def) ([]Rule, error) {
	var out []Rule
	for i, def := range defs {
		if def.ID == "" {
			return nil, chatguard.NewRuleError("", fmt.Sprintf("rules[%d].id", i), "is required")
		}
		if def.Regex == "" {
			return nil, chatguard.NewRuleError(def.ID, "regex", "is required")
		}

		cat := chatguard.Category(def.Category)
		if !cat.Valid() {
			return nil, chatguard.NewRuleError(def.ID, "category", "unknown category "+def.Category)
		}

		sev := GetCategoryInfo(cat).DefaultRisk
		if def.Severity != "" {
			parsed, err := chatguard.ParseSeverity(def.Severity)
			if err != nil {
				return nil, chatguard.NewRuleError(def.ID, "severity", err.Error())
			}
			sev = parsed
		}

		mask := chatguard.MaskStrategy(def.Mask)
		if def.Mask == "" {
			mask = chatguard.MaskFixedToken
			if !sev.Blocking() {
				mask = chatguard.MaskNone
			}
		}

		m, err := CompilePattern(def.Regex)
		if err != nil {
			return nil, chatguard.NewRuleError(def.ID, "regex", err.Error())
		}

		r := Rule{
			ID:          def.ID,
			Category:    cat,
			Severity:    sev,
			Mask:        mask,
			Description: def.Description,
			Matcher:     m,
		}
		if err := r.validate(); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Build derives a set from base by disabling and then adding rules.
func Build(base *Set, disabled []string, extra []Def) (*Set, error) {
	if base == nil {
		base = Default()
	}

	set := base
	var err error
	if len(disabled) > 0 {
		if set, err = set.Without(disabled...); err != nil {
			return nil, err
		}
	}

	compiled, err := Compile(extra)
	if err != nil {
		return nil, err
	}
	if len(compiled) == 0 {
		return set, nil
	}
	return set.With(compiled...)
}
