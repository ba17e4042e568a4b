package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pricequant/pricing"
)

// Handlers carries the request-handling dependencies. The pricing
// service is injected explicitly instead of living in package globals.
type Handlers struct {
	Service *pricing.Service
	Logger  *zap.Logger
	// Events serves /ws/events when set.
	Events http.HandlerFunc
}

func RegisterHandlers(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /domains", h.handleDomains)
	mux.HandleFunc("POST /predict", h.handlePredict)
	mux.HandleFunc("POST /predict_batch", h.handlePredictBatch)
	mux.HandleFunc("GET /model_info", h.handleModelInfo)
	if h.Events != nil {
		mux.HandleFunc("GET /ws/events", h.Events)
	}
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "ok",
		"model_loaded": h.Service.Loaded(),
	})
}

func (h *Handlers) handleDomains(w http.ResponseWriter, r *http.Request) {
	if !h.Service.Loaded() {
		h.respondModelNotLoaded(w)
		return
	}

	artifacts := h.Service.Artifacts()
	domains := make(map[string]interface{}, artifacts.Encoder.Len())
	for code, name := range artifacts.Encoder.Classes() {
		domains[name] = map[string]interface{}{
			"code":        code,
			"description": pricing.DomainDescription(name),
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"domaines_disponibles": domains,
		"total":                artifacts.Encoder.Len(),
		"format_accepte": map[string]string{
			"nom":  `Utilisez le nom du domaine (ex: "Électronique")`,
			"code": "Ou utilisez le code numérique (ex: 0)",
		},
	})
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	if !h.Service.Loaded() {
		h.respondModelNotLoaded(w)
		return
	}

	var req pricing.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "Aucune donnée JSON fournie",
			"format_attendu": map[string]string{
				"domaine":         "string ou int",
				"prix_concurrent": "float",
				"cout_production": "float",
				"marge_voulue":    "float",
			},
		})
		return
	}

	prediction, err := h.Service.Predict(req)
	if err != nil {
		h.respondPredictError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, struct {
		*pricing.Prediction
		Statut    string `json:"statut"`
		Timestamp string `json:"timestamp"`
	}{
		Prediction: prediction,
		Statut:     "success",
		Timestamp:  time.Now().Format(time.RFC3339),
	})
}

func (h *Handlers) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	if !h.Service.Loaded() {
		h.respondModelNotLoaded(w)
		return
	}

	var body struct {
		Predictions []json.RawMessage `json:"predictions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Predictions == nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": `Format incorrect. Utilisez: {"predictions": [{"domaine": ..., "prix_concurrent": ..., etc.}]}`,
			"exemple": map[string]interface{}{
				"predictions": []interface{}{pricing.ExamplePayload()},
			},
		})
		return
	}

	result, err := h.Service.PredictBatch(body.Predictions)
	if err != nil {
		h.respondPredictError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, struct {
		*pricing.BatchResult
		Timestamp string `json:"timestamp"`
	}{
		BatchResult: result,
		Timestamp:   time.Now().Format(time.RFC3339),
	})
}

func (h *Handlers) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	if !h.Service.Loaded() {
		h.respondModelNotLoaded(w)
		return
	}

	artifacts := h.Service.Artifacts()
	info := artifacts.Info

	payload := map[string]interface{}{
		"modele": map[string]interface{}{
			"type":               info.Type,
			"caracteristiques":   info.Features,
			"domaines_supportes": info.Domains,
			"nombre_domaines":    info.DomainCount,
			"charge_le":          info.LoadedAt,
		},
		"encodage_domaines": artifacts.DomainMapping,
		"conseils_utilisation": map[string]string{
			"format_donnees": "Utilisez des valeurs réelles (ex: 750.0 pour 750€)",
			"domaines":       "Nom complet ou code numérique acceptés",
			"validation":     "L'API valide automatiquement la cohérence économique",
			"precision":      "Les prédictions sont arrondies à 2 décimales",
		},
	}
	if info.Coefficients != nil {
		payload["coefficients"] = info.Coefficients
		payload["ordonnee_origine"] = info.Intercept
	}
	if info.FeatureImportances != nil {
		payload["importance_caracteristiques"] = info.FeatureImportances
	}

	respondJSON(w, http.StatusOK, payload)
}

// respondPredictError maps the pricing error taxonomy to the wire shapes.
func (h *Handlers) respondPredictError(w http.ResponseWriter, err error) {
	var (
		notLoaded  *pricing.ModelNotLoadedError
		missing    *pricing.MissingFieldsError
		domain     *pricing.DomainError
		coercion   *pricing.CoercionError
		validation *pricing.ValidationError
		internal   *pricing.InternalError
	)

	switch {
	case errors.As(err, &notLoaded):
		h.respondModelNotLoaded(w)
	case errors.As(err, &missing):
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":                "Caractéristiques manquantes",
			"manquantes":           missing.Fields,
			"domaines_disponibles": h.knownDomains(),
			"exemple_complet":      pricing.ExamplePayload(),
		})
	case errors.As(err, &domain):
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":                domain.Message,
			"domaines_disponibles": domain.ValidDomains,
			"suggestion":           "Vérifiez l'orthographe ou utilisez un code numérique",
		})
	case errors.As(err, &coercion):
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   coercion.Error(),
			"message": "Toutes les valeurs numériques doivent être des nombres valides",
		})
	case errors.As(err, &validation):
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":          "Erreurs de validation",
			"details":        validation.Details,
			"valeurs_recues": validation.Values,
		})
	case errors.As(err, &internal):
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":     "Erreur interne lors de la prédiction",
			"details":   internal.Err.Error(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
	default:
		h.Logger.Error("unexpected prediction error", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":   "Erreur interne lors de la prédiction",
			"details": err.Error(),
		})
	}
}

func (h *Handlers) respondModelNotLoaded(w http.ResponseWriter) {
	respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"error":   "Modèle non chargé",
		"message": "Veuillez entraîner le modèle avec le script d'entraînement",
	})
}

func (h *Handlers) knownDomains() []string {
	if !h.Service.Loaded() {
		return nil
	}
	return h.Service.Artifacts().Encoder.Classes()
}

// respondJSON writes a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
