package ml

import (
	"encoding/json"
	"errors"
	"os"
)

// RegressionTree is a binary regression tree split on median thresholds
// by variance reduction. Leaves predict the mean target of their samples.
type RegressionTree struct {
	Nodes       []RegressionNode `json:"nodes"`
	Importances []float64        `json:"feature_importances"`
	MaxDepth    int              `json:"max_depth"`
}

type RegressionNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

func NewRegressionTree(maxDepth int) *RegressionTree {
	if maxDepth <= 0 {
		maxDepth = 5
	}
	return &RegressionTree{MaxDepth: maxDepth}
}

func (rt *RegressionTree) Train(features [][]float64, targets []float64) error {
	if len(features) == 0 || len(targets) == 0 {
		return errors.New("features or targets empty")
	}
	if len(features) != len(targets) {
		return errors.New("features and targets size mismatch")
	}
	if rt.MaxDepth <= 0 {
		rt.MaxDepth = 5
	}

	rt.Importances = make([]float64, len(features[0]))
	rt.Nodes = rt.buildNode(features, targets, 0)

	total := 0.0
	for _, imp := range rt.Importances {
		total += imp
	}
	if total > 0 {
		for i := range rt.Importances {
			rt.Importances[i] /= total
		}
	}
	return nil
}

func (rt *RegressionTree) Predict(features []float64) (float64, error) {
	if len(rt.Nodes) == 0 {
		return 0, errors.New("model not trained")
	}
	idx := 0
	for {
		node := rt.Nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(rt.Nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

func (rt *RegressionTree) FeatureImportances() []float64 {
	return append([]float64(nil), rt.Importances...)
}

func (rt *RegressionTree) Save(path string) error {
	if len(rt.Nodes) == 0 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(rt)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (rt *RegressionTree) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded RegressionTree
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	if len(loaded.Nodes) == 0 {
		return errors.New("model file has no nodes")
	}
	*rt = loaded
	return nil
}

func (rt *RegressionTree) buildNode(features [][]float64, targets []float64, depth int) []RegressionNode {
	leaf := RegressionNode{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Value:      meanOf(targets),
		IsLeaf:     true,
	}
	if depth >= rt.MaxDepth || len(targets) < 2 || variance(targets) == 0 {
		return []RegressionNode{leaf}
	}

	bestFeature, threshold, reduction, ok := bestVarianceSplit(features, targets)
	if !ok {
		return []RegressionNode{leaf}
	}

	leftF, leftT, rightF, rightT := partition(features, targets, bestFeature, threshold)
	if len(leftT) == 0 || len(rightT) == 0 {
		return []RegressionNode{leaf}
	}

	rt.Importances[bestFeature] += reduction * float64(len(targets))

	leftNodes := rt.buildNode(leftF, leftT, depth+1)
	rightNodes := rt.buildNode(rightF, rightT, depth+1)

	root := RegressionNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
		Value:      leaf.Value,
		IsLeaf:     false,
	}

	nodes := make([]RegressionNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, offsetChildren(leftNodes, 1)...)
	nodes = append(nodes, offsetChildren(rightNodes, 1+len(leftNodes))...)
	return nodes
}

// offsetChildren rebases subtree-local child indices onto their final
// position in the flattened node array.
func offsetChildren(nodes []RegressionNode, offset int) []RegressionNode {
	for i := range nodes {
		if nodes[i].IsLeaf {
			continue
		}
		nodes[i].LeftChild += offset
		nodes[i].RightChild += offset
	}
	return nodes
}

func bestVarianceSplit(features [][]float64, targets []float64) (int, float64, float64, bool) {
	featureCount := len(features[0])
	parentVar := variance(targets)
	bestFeature := -1
	bestThreshold := 0.0
	bestReduction := 0.0

	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		values := make([]float64, len(features))
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		threshold := medianOf(values)

		var leftT, rightT []float64
		for i, feature := range features {
			if feature[featureIdx] <= threshold {
				leftT = append(leftT, targets[i])
			} else {
				rightT = append(rightT, targets[i])
			}
		}
		if len(leftT) == 0 || len(rightT) == 0 {
			continue
		}
		total := float64(len(targets))
		weighted := (float64(len(leftT))/total)*variance(leftT) + (float64(len(rightT))/total)*variance(rightT)
		reduction := parentVar - weighted
		if reduction > bestReduction {
			bestReduction = reduction
			bestFeature = featureIdx
			bestThreshold = threshold
		}
	}
	if bestFeature == -1 {
		return -1, 0, 0, false
	}
	return bestFeature, bestThreshold, bestReduction, true
}

func partition(features [][]float64, targets []float64, featureIdx int, threshold float64) ([][]float64, []float64, [][]float64, []float64) {
	var leftF, rightF [][]float64
	var leftT, rightT []float64
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftF = append(leftF, feature)
			leftT = append(leftT, targets[i])
		} else {
			rightF = append(rightF, feature)
			rightT = append(rightT, targets[i])
		}
	}
	return leftF, leftT, rightF, rightT
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := meanOf(values)
	sum := 0.0
	for _, v := range values {
		diff := v - mean
		sum += diff * diff
	}
	return sum / float64(len(values))
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	insertionSort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func insertionSort(values []float64) {
	for i := 1; i < len(values); i++ {
		j := i
		for j > 0 && values[j-1] > values[j] {
			values[j-1], values[j] = values[j], values[j-1]
			j--
		}
	}
}
