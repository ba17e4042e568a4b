package ml

import (
	"math"
	"path/filepath"
	"testing"
)

func TestRegressionTreeSplitsOnInformativeFeature(t *testing.T) {
	// Target depends only on the first feature.
	var features [][]float64
	var targets []float64
	for i := 0; i < 40; i++ {
		x := float64(i)
		noise := float64(i % 3)
		features = append(features, []float64{x, noise})
		if x < 20 {
			targets = append(targets, 10)
		} else {
			targets = append(targets, 100)
		}
	}

	tree := NewRegressionTree(4)
	if err := tree.Train(features, targets); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	low, err := tree.Predict([]float64{5, 1})
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	high, err := tree.Predict([]float64{35, 1})
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if math.Abs(low-10) > 1 || math.Abs(high-100) > 1 {
		t.Fatalf("expected ~10 and ~100, got %v and %v", low, high)
	}

	importances := tree.FeatureImportances()
	if len(importances) != 2 {
		t.Fatalf("expected 2 importances, got %d", len(importances))
	}
	if importances[0] <= importances[1] {
		t.Fatalf("expected feature 0 to dominate: %v", importances)
	}
	sum := importances[0] + importances[1]
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("importances should sum to 1, got %v", sum)
	}
}

func TestRegressionTreeSaveLoad(t *testing.T) {
	features := [][]float64{{1}, {2}, {3}, {10}, {11}, {12}}
	targets := []float64{5, 5, 5, 50, 50, 50}

	tree := NewRegressionTree(3)
	if err := tree.Train(features, targets); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "tree.json")
	if err := tree.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded := &RegressionTree{}
	if err := loaded.Load(path); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	want, _ := tree.Predict([]float64{11})
	got, err := loaded.Predict([]float64{11})
	if err != nil {
		t.Fatalf("predict after load: %v", err)
	}
	if want != got {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRegressionTreeUntrained(t *testing.T) {
	tree := &RegressionTree{}
	if _, err := tree.Predict([]float64{1}); err == nil {
		t.Fatal("expected error on untrained tree")
	}
}
