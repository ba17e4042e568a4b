package pricing

import (
	"encoding/json"
	"errors"
	"math"
)

// BatchItemResult is one entry of a batch response. A failed record gets
// its own error entry and never aborts the rest of the batch.
type BatchItemResult struct {
	Index            int             `json:"index"`
	Statut           string          `json:"statut"`
	PrixPredit       *float64        `json:"prix_predit,omitempty"`
	Domaine          string          `json:"domaine,omitempty"`
	MargeRealisee    *float64        `json:"marge_realisee,omitempty"`
	RatioConcurrent  *float64        `json:"ratio_concurrent,omitempty"`
	Error            string          `json:"error,omitempty"`
	Manquantes       []string        `json:"manquantes,omitempty"`
	Details          []string        `json:"details,omitempty"`
	Caracteristiques json.RawMessage `json:"caracteristiques"`
}

// PriceRange summarises successful predicted prices.
type PriceRange struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Moyenne float64 `json:"moyenne"`
}

// BatchStats aggregates a batch run. PrixRange is null when no record
// succeeded.
type BatchStats struct {
	Total      int         `json:"total"`
	Succes     int         `json:"succes"`
	Erreurs    int         `json:"erreurs"`
	TauxSucces float64     `json:"taux_succes"`
	PrixRange  *PriceRange `json:"prix_range"`
}

// BatchResult is the full batch response body.
type BatchResult struct {
	Predictions  []BatchItemResult `json:"predictions"`
	Statistiques BatchStats        `json:"statistiques"`
}

// PredictBatch applies the single-prediction logic to every record,
// isolating per-record failures, then computes aggregate statistics.
func (s *Service) PredictBatch(items []json.RawMessage) (*BatchResult, error) {
	if !s.Loaded() {
		return nil, ErrModelNotLoaded
	}

	results := make([]BatchItemResult, 0, len(items))
	var prices []float64

	for i, raw := range items {
		entry := s.predictBatchItem(i, raw)
		if entry.Statut == "success" && entry.PrixPredit != nil {
			prices = append(prices, *entry.PrixPredit)
		}
		results = append(results, entry)
	}

	stats := BatchStats{
		Total:   len(results),
		Succes:  len(prices),
		Erreurs: len(results) - len(prices),
	}
	if len(results) > 0 {
		stats.TauxSucces = math.Round(float64(len(prices))/float64(len(results))*1000) / 10
	}
	if len(prices) > 0 {
		stats.PrixRange = priceRange(prices)
	}

	return &BatchResult{Predictions: results, Statistiques: stats}, nil
}

func (s *Service) predictBatchItem(index int, raw json.RawMessage) BatchItemResult {
	entry := BatchItemResult{Index: index, Caracteristiques: raw}

	req, err := decodeBatchItem(raw)
	if err != nil {
		entry.Statut = "error"
		entry.Error = "format d'entrée invalide: " + err.Error()
		return entry
	}

	if missing := missingFields(req); len(missing) > 0 {
		entry.Statut = "error"
		entry.Error = "Caractéristiques manquantes"
		entry.Manquantes = missing
		return entry
	}

	resolved, err := ResolveDomain(req.Domaine, s.artifacts.Encoder)
	if err != nil {
		return failedEntry(entry, err)
	}

	prixConcurrent, coutProduction, margeVoulue, err := coerceNumerics(req)
	if err != nil {
		return failedEntry(entry, err)
	}

	if details := ValidateRanges(prixConcurrent, coutProduction, margeVoulue); len(details) > 0 {
		entry.Statut = "error"
		entry.Error = "Erreurs de validation"
		entry.Details = details
		return entry
	}

	prediction, err := s.infer(resolved, prixConcurrent, coutProduction, margeVoulue)
	if err != nil {
		return failedEntry(entry, err)
	}

	entry.Statut = "success"
	entry.PrixPredit = &prediction.PrixPredit
	entry.Domaine = resolved.Name
	entry.MargeRealisee = &prediction.Analyse.MargeRealisee
	entry.RatioConcurrent = prediction.Analyse.RatioPrixConcurrent
	return entry
}

func failedEntry(entry BatchItemResult, err error) BatchItemResult {
	entry.Statut = "error"

	var validation *ValidationError
	if errors.As(err, &validation) {
		entry.Error = "Erreurs de validation"
		entry.Details = validation.Details
		return entry
	}
	entry.Error = err.Error()
	return entry
}

func priceRange(prices []float64) *PriceRange {
	min, max, sum := prices[0], prices[0], 0.0
	for _, p := range prices {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
		sum += p
	}
	return &PriceRange{
		Min:     min,
		Max:     max,
		Moyenne: round2(sum / float64(len(prices))),
	}
}
