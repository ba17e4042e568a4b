package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Artifact file names inside the model directory. All four are produced
// together by one training run and loaded together at service startup.
const (
	ModelFile         = "pricing_model.json"
	EncoderFile       = "label_encoder.json"
	FeatureNamesFile  = "feature_names.json"
	DomainMappingFile = "domain_mapping.json"
)

const FeatureCount = 4

// DefaultFeatureNames is the trained column order the model expects.
func DefaultFeatureNames() []string {
	return []string{"Domaine_encoded", "Prix_concurrent", "Cout_production", "Marge_voulue"}
}

// Artifacts holds the four trained components plus the derived info
// summary. Loaded once at startup and read-only afterwards.
type Artifacts struct {
	Model         RegressionModel
	Encoder       *LabelEncoder
	FeatureNames  []string
	DomainMapping map[string]int
	LoadedAt      time.Time
	Info          ModelInfo
}

// ModelInfo is the introspection summary exposed by /model_info.
type ModelInfo struct {
	Type               string             `json:"type"`
	Features           []string           `json:"features"`
	Domains            []string           `json:"domains"`
	DomainCount        int                `json:"n_domains"`
	LoadedAt           string             `json:"loaded_at"`
	Coefficients       map[string]float64 `json:"coefficients,omitempty"`
	Intercept          *float64           `json:"intercept,omitempty"`
	FeatureImportances map[string]float64 `json:"feature_importances,omitempty"`
}

type modelEnvelope struct {
	Type  string          `json:"type"`
	Model json.RawMessage `json:"model"`
}

// SaveModelFile persists a model together with its type tag.
func SaveModelFile(path string, model RegressionModel) error {
	typeName, err := modelTypeTag(model)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(model)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(modelEnvelope{Type: typeName, Model: raw})
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

// LoadModelFile restores a model from its type-tagged file.
func LoadModelFile(path string) (RegressionModel, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var envelope modelEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, err
	}
	switch envelope.Type {
	case "linear_regression":
		model := &LinearRegression{}
		if err := json.Unmarshal(envelope.Model, model); err != nil {
			return nil, err
		}
		if len(model.Coefs) == 0 {
			return nil, errors.New("model file has no coefficients")
		}
		return model, nil
	case "regression_tree":
		model := &RegressionTree{}
		if err := json.Unmarshal(envelope.Model, model); err != nil {
			return nil, err
		}
		if len(model.Nodes) == 0 {
			return nil, errors.New("model file has no nodes")
		}
		return model, nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", envelope.Type)
	}
}

func modelTypeTag(model RegressionModel) (string, error) {
	switch model.(type) {
	case *LinearRegression:
		return "linear_regression", nil
	case *RegressionTree:
		return "regression_tree", nil
	default:
		return "", errors.New("unsupported model type")
	}
}

// ModelTypeName mirrors the display name used in the info summary.
func ModelTypeName(model RegressionModel) string {
	switch model.(type) {
	case *LinearRegression:
		return "LinearRegression"
	case *RegressionTree:
		return "RegressionTree"
	default:
		return "Unknown"
	}
}

// SaveArtifacts writes the four artifact files, overwriting existing ones.
func SaveArtifacts(dir string, model RegressionModel, encoder *LabelEncoder, featureNames []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := SaveModelFile(filepath.Join(dir, ModelFile), model); err != nil {
		return err
	}
	if err := encoder.Save(filepath.Join(dir, EncoderFile)); err != nil {
		return err
	}
	names, err := json.Marshal(featureNames)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, FeatureNamesFile), names, 0o600); err != nil {
		return err
	}
	mapping, err := json.Marshal(encoder.Mapping())
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, DomainMappingFile), mapping, 0o600)
}

// LoadArtifacts loads the four artifacts from dir. The domain mapping is
// regenerated from the encoder when its file is absent.
func LoadArtifacts(dir string) (*Artifacts, error) {
	model, err := LoadModelFile(filepath.Join(dir, ModelFile))
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	encoder := &LabelEncoder{}
	if err := encoder.Load(filepath.Join(dir, EncoderFile)); err != nil {
		return nil, fmt.Errorf("load encoder: %w", err)
	}

	namesPayload, err := os.ReadFile(filepath.Join(dir, FeatureNamesFile))
	if err != nil {
		return nil, fmt.Errorf("load feature names: %w", err)
	}
	var featureNames []string
	if err := json.Unmarshal(namesPayload, &featureNames); err != nil {
		return nil, fmt.Errorf("load feature names: %w", err)
	}
	if len(featureNames) != FeatureCount {
		return nil, fmt.Errorf("expected %d feature names, got %d", FeatureCount, len(featureNames))
	}

	mapping := make(map[string]int)
	mappingPayload, err := os.ReadFile(filepath.Join(dir, DomainMappingFile))
	switch {
	case err == nil:
		if err := json.Unmarshal(mappingPayload, &mapping); err != nil {
			return nil, fmt.Errorf("load domain mapping: %w", err)
		}
	case os.IsNotExist(err):
		mapping = encoder.Mapping()
	default:
		return nil, fmt.Errorf("load domain mapping: %w", err)
	}

	loadedAt := time.Now()
	artifacts := &Artifacts{
		Model:         model,
		Encoder:       encoder,
		FeatureNames:  featureNames,
		DomainMapping: mapping,
		LoadedAt:      loadedAt,
		Info:          buildModelInfo(model, encoder, featureNames, loadedAt),
	}
	return artifacts, nil
}

func buildModelInfo(model RegressionModel, encoder *LabelEncoder, featureNames []string, loadedAt time.Time) ModelInfo {
	info := ModelInfo{
		Type:        ModelTypeName(model),
		Features:    append([]string(nil), featureNames...),
		Domains:     encoder.Classes(),
		DomainCount: encoder.Len(),
		LoadedAt:    loadedAt.Format(time.RFC3339),
	}

	switch m := model.(type) {
	case LinearExplainer:
		coefs := m.Coefficients()
		info.Coefficients = make(map[string]float64, len(coefs))
		for i, coef := range coefs {
			if i < len(featureNames) {
				info.Coefficients[featureNames[i]] = coef
			}
		}
		intercept := m.Intercept()
		info.Intercept = &intercept
	case ImportanceExplainer:
		importances := m.FeatureImportances()
		info.FeatureImportances = make(map[string]float64, len(importances))
		for i, imp := range importances {
			if i < len(featureNames) {
				info.FeatureImportances[featureNames[i]] = imp
			}
		}
	}
	return info
}
