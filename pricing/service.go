package pricing

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"pricequant/ml"
)

// Request is a single prediction record. Field presence is tracked so
// missing fields can be reported by name.
type Request struct {
	Domaine        DomainRef    `json:"domaine"`
	PrixConcurrent NumericValue `json:"prix_concurrent"`
	CoutProduction NumericValue `json:"cout_production"`
	MargeVoulue    NumericValue `json:"marge_voulue"`
}

// ExamplePayload is the well-formed request shown in error responses.
func ExamplePayload() map[string]interface{} {
	return map[string]interface{}{
		"domaine":         "Électronique",
		"prix_concurrent": 750.0,
		"cout_production": 500.0,
		"marge_voulue":    0.6,
	}
}

// UsedFeatures echoes the resolved inputs of a prediction.
type UsedFeatures struct {
	Domaine        string  `json:"domaine"`
	DomaineEncode  int     `json:"domaine_encode"`
	PrixConcurrent float64 `json:"prix_concurrent"`
	CoutProduction float64 `json:"cout_production"`
	MargeVoulue    float64 `json:"marge_voulue"`
}

// EconomicAnalysis holds the derived business metrics.
type EconomicAnalysis struct {
	MargeRealisee       float64  `json:"marge_realisee"`
	BeneficeUnitaire    float64  `json:"benefice_unitaire"`
	RatioPrixConcurrent *float64 `json:"ratio_prix_concurrent"`
	StrategiePrix       string   `json:"strategie_prix"`
}

// Recommendations holds the qualitative classifications.
type Recommendations struct {
	Competitivite string `json:"competitivite"`
	Rentabilite   string `json:"rentabilite"`
}

// Prediction is the full single-prediction result.
type Prediction struct {
	PrixPredit       float64          `json:"prix_predit"`
	Caracteristiques UsedFeatures     `json:"caracteristiques_utilisees"`
	Analyse          EconomicAnalysis `json:"analyse_economique"`
	Recommandations  Recommendations  `json:"recommandations"`
}

// PredictionEvent is broadcast to monitoring subscribers after each
// successful single prediction.
type PredictionEvent struct {
	Domaine    string    `json:"domaine"`
	PrixPredit float64   `json:"prix_predit"`
	Strategie  string    `json:"strategie_prix"`
	Timestamp  time.Time `json:"timestamp"`
}

// Recorder persists served predictions.
type Recorder interface {
	RecordPrediction(domaine string, code int, prixConcurrent, coutProduction, margeVoulue, prixPredit float64) error
}

// Publisher fans prediction events out to live subscribers.
type Publisher interface {
	PublishPrediction(event PredictionEvent)
}

// Service orchestrates validation, domain resolution and inference over
// an immutable artifact set. All state is read-only after construction.
type Service struct {
	artifacts *ml.Artifacts
	logger    *zap.Logger
	cache     *lru.Cache[string, Prediction]
	recorder  Recorder
	publisher Publisher
}

// NewService builds a Service. artifacts may be nil when the startup
// load failed; every operation then reports ErrModelNotLoaded.
func NewService(artifacts *ml.Artifacts, logger *zap.Logger, cacheSize int) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, Prediction](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{artifacts: artifacts, logger: logger, cache: cache}, nil
}

// SetRecorder installs the optional prediction store.
func (s *Service) SetRecorder(r Recorder) { s.recorder = r }

// SetPublisher installs the optional event publisher.
func (s *Service) SetPublisher(p Publisher) { s.publisher = p }

// Loaded reports whether the artifact set was loaded at startup.
func (s *Service) Loaded() bool { return s.artifacts != nil }

// Artifacts exposes the loaded artifact set to the informational
// endpoints. Nil when not loaded.
func (s *Service) Artifacts() *ml.Artifacts { return s.artifacts }

// Predict runs the full single-prediction flow.
func (s *Service) Predict(req Request) (*Prediction, error) {
	if !s.Loaded() {
		return nil, ErrModelNotLoaded
	}

	if missing := missingFields(req); len(missing) > 0 {
		return nil, &MissingFieldsError{Fields: missing}
	}

	resolved, err := ResolveDomain(req.Domaine, s.artifacts.Encoder)
	if err != nil {
		return nil, err
	}

	prixConcurrent, coutProduction, margeVoulue, err := coerceNumerics(req)
	if err != nil {
		return nil, err
	}

	if details := ValidateRanges(prixConcurrent, coutProduction, margeVoulue); len(details) > 0 {
		return nil, &ValidationError{
			Details: details,
			Values: map[string]float64{
				"prix_concurrent": prixConcurrent,
				"cout_production": coutProduction,
				"marge_voulue":    margeVoulue,
			},
		}
	}

	key := cacheKey(resolved.Code, prixConcurrent, coutProduction, margeVoulue)
	if cached, ok := s.cache.Get(key); ok {
		return &cached, nil
	}

	prediction, err := s.infer(resolved, prixConcurrent, coutProduction, margeVoulue)
	if err != nil {
		s.logger.Error("prediction failed",
			zap.String("domaine", resolved.Name),
			zap.Error(err),
			zap.Stack("stack"))
		return nil, &InternalError{Err: err}
	}

	s.cache.Add(key, *prediction)

	if s.recorder != nil {
		if err := s.recorder.RecordPrediction(resolved.Name, resolved.Code,
			prixConcurrent, coutProduction, margeVoulue, prediction.PrixPredit); err != nil {
			s.logger.Warn("failed to record prediction", zap.Error(err))
		}
	}
	if s.publisher != nil {
		s.publisher.PublishPrediction(PredictionEvent{
			Domaine:    resolved.Name,
			PrixPredit: prediction.PrixPredit,
			Strategie:  prediction.Analyse.StrategiePrix,
			Timestamp:  time.Now(),
		})
	}

	return prediction, nil
}

// infer builds the feature vector in trained column order, invokes the
// model and derives the economic metrics.
func (s *Service) infer(resolved ResolvedDomain, prixConcurrent, coutProduction, margeVoulue float64) (*Prediction, error) {
	features := []float64{float64(resolved.Code), prixConcurrent, coutProduction, margeVoulue}
	predicted, err := s.artifacts.Model.Predict(features)
	if err != nil {
		return nil, err
	}

	marge := 0.0
	if coutProduction > 0 {
		marge = (predicted - coutProduction) / coutProduction
	}
	benefice := predicted - coutProduction

	var ratio *float64
	if prixConcurrent > 0 {
		r := predicted / prixConcurrent
		ratio = &r
	}

	prediction := &Prediction{
		PrixPredit: round2(predicted),
		Caracteristiques: UsedFeatures{
			Domaine:        resolved.Name,
			DomaineEncode:  resolved.Code,
			PrixConcurrent: prixConcurrent,
			CoutProduction: coutProduction,
			MargeVoulue:    margeVoulue,
		},
		Analyse: EconomicAnalysis{
			MargeRealisee:       round4(marge),
			BeneficeUnitaire:    round2(benefice),
			RatioPrixConcurrent: roundRatio(ratio),
			StrategiePrix:       classifyStrategy(ratio),
		},
		Recommandations: Recommendations{
			Competitivite: classifyCompetitiveness(ratio),
			Rentabilite:   classifyProfitability(marge, margeVoulue),
		},
	}
	return prediction, nil
}

func missingFields(req Request) []string {
	var missing []string
	if !req.Domaine.IsSet() {
		missing = append(missing, "domaine")
	}
	if !req.PrixConcurrent.IsSet() {
		missing = append(missing, "prix_concurrent")
	}
	if !req.CoutProduction.IsSet() {
		missing = append(missing, "cout_production")
	}
	if !req.MargeVoulue.IsSet() {
		missing = append(missing, "marge_voulue")
	}
	return missing
}

func coerceNumerics(req Request) (prixConcurrent, coutProduction, margeVoulue float64, err error) {
	if prixConcurrent, err = req.PrixConcurrent.Coerce("prix_concurrent"); err != nil {
		return 0, 0, 0, err
	}
	if coutProduction, err = req.CoutProduction.Coerce("cout_production"); err != nil {
		return 0, 0, 0, err
	}
	if margeVoulue, err = req.MargeVoulue.Coerce("marge_voulue"); err != nil {
		return 0, 0, 0, err
	}
	return prixConcurrent, coutProduction, margeVoulue, nil
}

func classifyStrategy(ratio *float64) string {
	switch {
	case ratio != nil && *ratio < 0.9:
		return "Agressive (prix bas)"
	case ratio != nil && *ratio > 1.1:
		return "Premium (prix élevé)"
	default:
		return "Équilibrée"
	}
}

func classifyCompetitiveness(ratio *float64) string {
	if ratio != nil && *ratio >= 0.95 && *ratio <= 1.05 {
		return "Compétitif"
	}
	return "À ajuster"
}

func classifyProfitability(marge, margeVoulue float64) string {
	if marge >= margeVoulue*0.8 {
		return "Bonne"
	}
	return "Faible"
}

func cacheKey(code int, prixConcurrent, coutProduction, margeVoulue float64) string {
	return fmt.Sprintf("%d|%g|%g|%g", code, prixConcurrent, coutProduction, margeVoulue)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

func roundRatio(ratio *float64) *float64 {
	if ratio == nil {
		return nil
	}
	rounded := math.Round(*ratio*1000) / 1000
	return &rounded
}

// rawRequest re-decodes a batch item so the original payload can be
// echoed back alongside its result.
func decodeBatchItem(raw json.RawMessage) (Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, err
	}
	return req, nil
}
