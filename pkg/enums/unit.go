package enums

import (
	"fmt"
	"strings"
)

// Unit defines the measurement units an inventory item can be counted in.
type Unit string

const (
	UnitEach Unit = "each"
	UnitKg   Unit = "kg"
	UnitGram Unit = "gram"
	UnitPack Unit = "pack"
	UnitCase Unit = "case"
)

// DefaultUnit is used when an import row carries an unrecognized unit.
const DefaultUnit = UnitEach

var validUnits = []Unit{
	UnitEach,
	UnitKg,
	UnitGram,
	UnitPack,
	UnitCase,
}

// unitSynonyms maps localized names and abbreviations seen in import files
// onto the closed unit vocabulary.
var unitSynonyms = map[string]Unit{
	"each":    UnitEach,
	"ea":      UnitEach,
	"un":      UnitEach,
	"und":     UnitEach,
	"unidade": UnitEach,
	"unit":    UnitEach,
	"kg":      UnitKg,
	"kilo":    UnitKg,
	"quilo":   UnitKg,
	"g":       UnitGram,
	"gram":    UnitGram,
	"grama":   UnitGram,
	"pack":    UnitPack,
	"pacote":  UnitPack,
	"pct":     UnitPack,
	"case":    UnitCase,
	"caixa":   UnitCase,
	"cx":      UnitCase,
}

// String implements fmt.Stringer.
func (u Unit) String() string {
	return string(u)
}

// IsValid reports whether the value is a known Unit.
func (u Unit) IsValid() bool {
	for _, candidate := range validUnits {
		if candidate == u {
			return true
		}
	}
	return false
}

// ParseUnit converts raw input into a Unit.
func ParseUnit(value string) (Unit, error) {
	for _, candidate := range validUnits {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid unit %q", value)
}

// NormalizeUnit resolves localized synonyms and abbreviations, falling back
// to DefaultUnit when the input is blank or unrecognized.
func NormalizeUnit(value string) Unit {
	key := strings.ToLower(strings.TrimSpace(value))
	key = strings.TrimSuffix(key, ".")
	if unit, ok := unitSynonyms[key]; ok {
		return unit
	}
	return DefaultUnit
}
