package ml

import (
	"encoding/json"
	"errors"
	"math"
	"os"
)

// LinearRegression is an ordinary least-squares model fitted by solving
// the normal equations.
type LinearRegression struct {
	Coefs []float64 `json:"coefficients"`
	Bias  float64   `json:"intercept"`
}

func (lr *LinearRegression) Train(features [][]float64, targets []float64) error {
	if len(features) == 0 || len(targets) == 0 {
		return errors.New("features or targets empty")
	}
	if len(features) != len(targets) {
		return errors.New("features and targets size mismatch")
	}

	// Augment each row with a leading 1 for the intercept term.
	cols := len(features[0]) + 1
	if len(features) < cols {
		return errors.New("not enough samples to fit")
	}

	// Build X'X and X'y.
	xtx := make([][]float64, cols)
	for i := range xtx {
		xtx[i] = make([]float64, cols)
	}
	xty := make([]float64, cols)

	row := make([]float64, cols)
	for r, feature := range features {
		if len(feature) != cols-1 {
			return errors.New("inconsistent feature width")
		}
		row[0] = 1
		copy(row[1:], feature)
		for i := 0; i < cols; i++ {
			for j := 0; j < cols; j++ {
				xtx[i][j] += row[i] * row[j]
			}
			xty[i] += row[i] * targets[r]
		}
	}

	solution, err := solveLinearSystem(xtx, xty)
	if err != nil {
		return err
	}

	lr.Bias = solution[0]
	lr.Coefs = append([]float64(nil), solution[1:]...)
	return nil
}

func (lr *LinearRegression) Predict(features []float64) (float64, error) {
	if len(lr.Coefs) == 0 {
		return 0, errors.New("model not trained")
	}
	if len(features) != len(lr.Coefs) {
		return 0, errors.New("feature count mismatch")
	}
	prediction := lr.Bias
	for i, coef := range lr.Coefs {
		prediction += coef * features[i]
	}
	return prediction, nil
}

func (lr *LinearRegression) Coefficients() []float64 {
	return append([]float64(nil), lr.Coefs...)
}

func (lr *LinearRegression) Intercept() float64 {
	return lr.Bias
}

func (lr *LinearRegression) Save(path string) error {
	if len(lr.Coefs) == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(lr)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (lr *LinearRegression) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded LinearRegression
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	if len(loaded.Coefs) == 0 {
		return errors.New("model file has no coefficients")
	}
	*lr = loaded
	return nil
}

// solveLinearSystem solves Ax = b by Gaussian elimination with partial
// pivoting. A is modified in place.
func solveLinearSystem(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	x := append([]float64(nil), b...)

	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, errors.New("singular design matrix")
		}
		a[col], a[pivot] = a[pivot], a[col]
		x[col], x[pivot] = x[pivot], x[col]

		for r := col + 1; r < n; r++ {
			factor := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= factor * a[col][c]
			}
			x[r] -= factor * x[col]
		}
	}

	for col := n - 1; col >= 0; col-- {
		sum := x[col]
		for c := col + 1; c < n; c++ {
			sum -= a[col][c] * x[c]
		}
		x[col] = sum / a[col][col]
	}
	return x, nil
}
