package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// LabelEncoder maps category names to dense integer codes 0..N-1.
// Codes are assigned in sorted name order at fit time, so they are stable
// only within one trained artifact set.
type LabelEncoder struct {
	ClassNames []string `json:"classes"`

	codes map[string]int
}

func (le *LabelEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.New("no values to fit")
	}
	seen := make(map[string]struct{})
	classes := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		classes = append(classes, v)
	}
	sort.Strings(classes)
	le.ClassNames = classes
	le.buildIndex()
	return nil
}

// Transform returns the code for a known category name.
func (le *LabelEncoder) Transform(name string) (int, error) {
	if le.codes == nil {
		le.buildIndex()
	}
	code, ok := le.codes[name]
	if !ok {
		return 0, fmt.Errorf("unknown category %q", name)
	}
	return code, nil
}

// InverseTransform returns the category name for a code.
func (le *LabelEncoder) InverseTransform(code int) (string, error) {
	if code < 0 || code >= len(le.ClassNames) {
		return "", fmt.Errorf("code %d out of range [0, %d)", code, len(le.ClassNames))
	}
	return le.ClassNames[code], nil
}

// Classes returns the category names in code order.
func (le *LabelEncoder) Classes() []string {
	return append([]string(nil), le.ClassNames...)
}

func (le *LabelEncoder) Len() int {
	return len(le.ClassNames)
}

// Mapping returns the full name-to-code map.
func (le *LabelEncoder) Mapping() map[string]int {
	mapping := make(map[string]int, len(le.ClassNames))
	for code, name := range le.ClassNames {
		mapping[name] = code
	}
	return mapping
}

func (le *LabelEncoder) Save(path string) error {
	if len(le.ClassNames) == 0 {
		return errors.New("encoder not fitted")
	}
	payload, err := json.Marshal(le)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (le *LabelEncoder) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded LabelEncoder
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	if len(loaded.ClassNames) == 0 {
		return errors.New("encoder file has no classes")
	}
	loaded.buildIndex()
	*le = loaded
	return nil
}

func (le *LabelEncoder) buildIndex() {
	le.codes = make(map[string]int, len(le.ClassNames))
	for code, name := range le.ClassNames {
		le.codes[name] = code
	}
}
