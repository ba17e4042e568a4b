package pricing

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"pricequant/ml"
)

// DomainRef is the tagged variant for the "domaine" request field, which
// accepts either a category name or an integer code.
type DomainRef struct {
	name    string
	code    int
	byCode  bool
	set     bool
	invalid bool
	raw     string
}

// DomainByName builds a name reference.
func DomainByName(name string) DomainRef {
	return DomainRef{name: name, set: true}
}

// DomainByCode builds a code reference.
func DomainByCode(code int) DomainRef {
	return DomainRef{code: code, byCode: true, set: true}
}

// IsSet reports whether the field was present in the request.
func (d DomainRef) IsSet() bool { return d.set }

func (d *DomainRef) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*d = DomainRef{}
		return nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*d = DomainByName(name)
		return nil
	}

	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		// Fractional codes truncate toward zero.
		*d = DomainByCode(int(math.Trunc(number)))
		return nil
	}

	*d = DomainRef{set: true, invalid: true, raw: trimmed}
	return nil
}

// ResolvedDomain carries both representations needed downstream: the
// canonical name for display and the code for the feature vector.
type ResolvedDomain struct {
	Name string
	Code int
}

// ResolveDomain maps a DomainRef to its canonical name and code against
// the trained encoder. Unknown names fall back to a case- and
// accent-insensitive substring match in both directions, taking the
// first match in encoder class order.
func ResolveDomain(ref DomainRef, encoder *ml.LabelEncoder) (ResolvedDomain, error) {
	classes := encoder.Classes()

	if ref.invalid {
		return ResolvedDomain{}, &CoercionError{Field: "domaine", Value: ref.raw}
	}

	if !ref.byCode {
		if code, err := encoder.Transform(ref.name); err == nil {
			return ResolvedDomain{Name: ref.name, Code: code}, nil
		}
		needle := foldKey(ref.name)
		for code, class := range classes {
			key := foldKey(class)
			if strings.Contains(key, needle) || strings.Contains(needle, key) {
				return ResolvedDomain{Name: class, Code: code}, nil
			}
		}
		return ResolvedDomain{}, &DomainError{
			Message:      fmt.Sprintf("domaine %q non reconnu", ref.name),
			ValidDomains: classes,
		}
	}

	if ref.code < 0 || ref.code >= len(classes) {
		return ResolvedDomain{}, &DomainError{
			Message:      fmt.Sprintf("code domaine %d invalide", ref.code),
			ValidDomains: classes,
		}
	}
	return ResolvedDomain{Name: classes[ref.code], Code: ref.code}, nil
}

// foldKey lowercases and strips diacritics so "electronique" matches
// "Électronique".
func foldKey(s string) string {
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}
