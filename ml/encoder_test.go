package ml

import (
	"path/filepath"
	"testing"
)

func TestLabelEncoderFitAssignsSortedCodes(t *testing.T) {
	encoder := &LabelEncoder{}
	if err := encoder.Fit([]string{"Mode", "Sport", "Mode", "Alimentation"}); err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	classes := encoder.Classes()
	expected := []string{"Alimentation", "Mode", "Sport"}
	if len(classes) != len(expected) {
		t.Fatalf("expected %d classes, got %d", len(expected), len(classes))
	}
	for i, name := range expected {
		if classes[i] != name {
			t.Fatalf("class %d: expected %s, got %s", i, name, classes[i])
		}
	}
}

func TestLabelEncoderRoundTrip(t *testing.T) {
	encoder := &LabelEncoder{}
	domains := []string{"Électronique", "Mode", "Maison", "Sport", "Automobile", "Livres", "Beauté", "Alimentation"}
	if err := encoder.Fit(domains); err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	for _, name := range encoder.Classes() {
		code, err := encoder.Transform(name)
		if err != nil {
			t.Fatalf("transform %s: %v", name, err)
		}
		back, err := encoder.InverseTransform(code)
		if err != nil {
			t.Fatalf("inverse transform %d: %v", code, err)
		}
		if back != name {
			t.Fatalf("round trip %s -> %d -> %s", name, code, back)
		}
	}
}

func TestLabelEncoderUnknownAndOutOfRange(t *testing.T) {
	encoder := &LabelEncoder{}
	if err := encoder.Fit([]string{"Mode", "Sport"}); err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	if _, err := encoder.Transform("Inexistant"); err == nil {
		t.Fatal("expected error for unknown category")
	}
	if _, err := encoder.InverseTransform(-1); err == nil {
		t.Fatal("expected error for negative code")
	}
	if _, err := encoder.InverseTransform(2); err == nil {
		t.Fatal("expected error for out-of-range code")
	}
}

func TestLabelEncoderSaveLoad(t *testing.T) {
	encoder := &LabelEncoder{}
	if err := encoder.Fit([]string{"Mode", "Sport", "Alimentation"}); err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "encoder.json")
	if err := encoder.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded := &LabelEncoder{}
	if err := loaded.Load(path); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	code, err := loaded.Transform("Sport")
	if err != nil {
		t.Fatalf("transform after load: %v", err)
	}
	want, _ := encoder.Transform("Sport")
	if code != want {
		t.Fatalf("expected code %d, got %d", want, code)
	}
}
