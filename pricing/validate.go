package pricing

import (
	"encoding/json"
	"strconv"
	"strings"
)

// NumericValue accepts a JSON number or a numeric string, mirroring the
// accepted request formats.
type NumericValue struct {
	value   float64
	set     bool
	invalid bool
	raw     string
}

func Numeric(v float64) NumericValue {
	return NumericValue{value: v, set: true}
}

// IsSet reports whether the field was present in the request.
func (n NumericValue) IsSet() bool { return n.set }

func (n *NumericValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*n = NumericValue{}
		return nil
	}

	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		*n = Numeric(number)
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
			*n = Numeric(parsed)
			return nil
		}
		*n = NumericValue{set: true, invalid: true, raw: text}
		return nil
	}

	*n = NumericValue{set: true, invalid: true, raw: trimmed}
	return nil
}

// Coerce returns the float value or a CoercionError naming the field and
// the offending value.
func (n NumericValue) Coerce(field string) (float64, error) {
	if n.invalid {
		return 0, &CoercionError{Field: field, Value: n.raw}
	}
	return n.value, nil
}

// ValidateRanges checks sign constraints on all three inputs and the
// cost/price business rule, returning every violation found.
func ValidateRanges(prixConcurrent, coutProduction, margeVoulue float64) []string {
	var errs []string
	if prixConcurrent < 0 {
		errs = append(errs, "prix_concurrent doit être positif")
	}
	if coutProduction < 0 {
		errs = append(errs, "cout_production doit être positif")
	}
	if margeVoulue < 0 {
		errs = append(errs, "marge_voulue doit être positive")
	}
	if coutProduction > prixConcurrent*0.9 {
		errs = append(errs, "cout_production semble trop élevé par rapport au prix_concurrent")
	}
	return errs
}
