package ml

// RegressionModel maps a fixed-order numeric feature vector to a scalar price.
type RegressionModel interface {
	Predict(features []float64) (float64, error)
	Save(path string) error
	Load(path string) error
}

// LinearExplainer is implemented by models exposing per-feature
// coefficients and an intercept.
type LinearExplainer interface {
	Coefficients() []float64
	Intercept() float64
}

// ImportanceExplainer is implemented by models exposing per-feature
// importances instead of coefficients.
type ImportanceExplainer interface {
	FeatureImportances() []float64
}
