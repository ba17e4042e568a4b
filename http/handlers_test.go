package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"pricequant/ml"
	"pricequant/pricing"
)

func testArtifacts(t *testing.T) *ml.Artifacts {
	t.Helper()
	encoder := &ml.LabelEncoder{}
	domains := []string{"Électronique", "Mode", "Maison", "Sport", "Automobile", "Livres", "Beauté", "Alimentation"}
	if err := encoder.Fit(domains); err != nil {
		t.Fatalf("fit encoder: %v", err)
	}

	intercept := 0.0
	return &ml.Artifacts{
		Model:         &ml.LinearRegression{Coefs: []float64{0, 1, 0, 0}, Bias: 0},
		Encoder:       encoder,
		FeatureNames:  ml.DefaultFeatureNames(),
		DomainMapping: encoder.Mapping(),
		LoadedAt:      time.Now(),
		Info: ml.ModelInfo{
			Type:        "LinearRegression",
			Features:    ml.DefaultFeatureNames(),
			Domains:     encoder.Classes(),
			DomainCount: encoder.Len(),
			Coefficients: map[string]float64{
				"Domaine_encoded": 0, "Prix_concurrent": 1,
				"Cout_production": 0, "Marge_voulue": 0,
			},
			Intercept: &intercept,
		},
	}
}

func testMux(t *testing.T, artifacts *ml.Artifacts) *http.ServeMux {
	t.Helper()
	service, err := pricing.NewService(artifacts, zap.NewNop(), 16)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	mux := http.NewServeMux()
	RegisterHandlers(mux, &Handlers{Service: service, Logger: zap.NewNop()})
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, req)

	var decoded map[string]interface{}
	if recorder.Body.Len() > 0 {
		if err := json.Unmarshal(recorder.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response: %v\n%s", err, recorder.Body.String())
		}
	}
	return recorder, decoded
}

func TestHealthEndpoint(t *testing.T) {
	mux := testMux(t, testArtifacts(t))

	recorder, body := doJSON(t, mux, http.MethodGet, "/api/health", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if body["status"] != "ok" || body["model_loaded"] != true {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestPredictSuccess(t *testing.T) {
	mux := testMux(t, testArtifacts(t))

	recorder, body := doJSON(t, mux, http.MethodPost, "/predict",
		`{"domaine": "Électronique", "prix_concurrent": 750, "cout_production": 500, "marge_voulue": 0.6}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", recorder.Code, body)
	}
	if body["statut"] != "success" {
		t.Fatalf("unexpected statut: %v", body["statut"])
	}
	if body["prix_predit"] != 750.0 {
		t.Fatalf("expected prix_predit 750, got %v", body["prix_predit"])
	}

	analyse, ok := body["analyse_economique"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing analyse_economique: %v", body)
	}
	if analyse["ratio_prix_concurrent"] != 1.0 {
		t.Fatalf("expected ratio 1, got %v", analyse["ratio_prix_concurrent"])
	}
	if analyse["strategie_prix"] != "Équilibrée" {
		t.Fatalf("unexpected strategy: %v", analyse["strategie_prix"])
	}

	if _, ok := body["caracteristiques_utilisees"]; !ok {
		t.Fatalf("missing caracteristiques_utilisees: %v", body)
	}
	if _, ok := body["recommandations"]; !ok {
		t.Fatalf("missing recommandations: %v", body)
	}
}

func TestPredictUnknownDomain(t *testing.T) {
	mux := testMux(t, testArtifacts(t))

	recorder, body := doJSON(t, mux, http.MethodPost, "/predict",
		`{"domaine": "Inexistant", "prix_concurrent": 750, "cout_production": 500, "marge_voulue": 0.6}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	domains, ok := body["domaines_disponibles"].([]interface{})
	if !ok || len(domains) != 8 {
		t.Fatalf("expected 8 available domains, got %v", body["domaines_disponibles"])
	}
	if body["suggestion"] == nil {
		t.Fatalf("expected a suggestion, got %v", body)
	}
}

func TestPredictMissingFields(t *testing.T) {
	mux := testMux(t, testArtifacts(t))

	recorder, body := doJSON(t, mux, http.MethodPost, "/predict",
		`{"prix_concurrent": 750}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if body["error"] != "Caractéristiques manquantes" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
	missing, ok := body["manquantes"].([]interface{})
	if !ok || len(missing) != 3 {
		t.Fatalf("expected 3 missing fields, got %v", body["manquantes"])
	}
	if _, ok := body["exemple_complet"]; !ok {
		t.Fatalf("expected exemple_complet: %v", body)
	}
}

func TestPredictValidationErrors(t *testing.T) {
	mux := testMux(t, testArtifacts(t))

	recorder, body := doJSON(t, mux, http.MethodPost, "/predict",
		`{"domaine": "Mode", "prix_concurrent": -10, "cout_production": 500, "marge_voulue": 0.6}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if body["error"] != "Erreurs de validation" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
	if _, ok := body["valeurs_recues"]; !ok {
		t.Fatalf("expected valeurs_recues: %v", body)
	}
}

func TestPredictMalformedBody(t *testing.T) {
	mux := testMux(t, testArtifacts(t))

	recorder, body := doJSON(t, mux, http.MethodPost, "/predict", `not json`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if body["error"] != "Aucune donnée JSON fournie" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
	if _, ok := body["format_attendu"]; !ok {
		t.Fatalf("expected format_attendu: %v", body)
	}
}

func TestPredictModelNotLoaded(t *testing.T) {
	mux := testMux(t, nil)

	recorder, body := doJSON(t, mux, http.MethodPost, "/predict",
		`{"domaine": "Mode", "prix_concurrent": 100, "cout_production": 50, "marge_voulue": 0.3}`)
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
	if body["error"] != "Modèle non chargé" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
}

func TestDomainsEndpoint(t *testing.T) {
	mux := testMux(t, testArtifacts(t))

	recorder, body := doJSON(t, mux, http.MethodGet, "/domains", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if body["total"] != 8.0 {
		t.Fatalf("expected total 8, got %v", body["total"])
	}
	domains, ok := body["domaines_disponibles"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing domaines_disponibles: %v", body)
	}
	mode, ok := domains["Mode"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing Mode entry: %v", domains)
	}
	if mode["description"] == nil || mode["code"] == nil {
		t.Fatalf("incomplete Mode entry: %v", mode)
	}
}

func TestDomainsModelNotLoaded(t *testing.T) {
	mux := testMux(t, nil)

	recorder, _ := doJSON(t, mux, http.MethodGet, "/domains", "")
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
}

func TestPredictBatchSuccess(t *testing.T) {
	mux := testMux(t, testArtifacts(t))

	recorder, body := doJSON(t, mux, http.MethodPost, "/predict_batch",
		`{"predictions": [
			{"domaine": "Mode", "prix_concurrent": 100, "cout_production": 40, "marge_voulue": 0.3},
			{"domaine": "Inexistant", "prix_concurrent": 100, "cout_production": 40, "marge_voulue": 0.3}
		]}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", recorder.Code, body)
	}

	predictions, ok := body["predictions"].([]interface{})
	if !ok || len(predictions) != 2 {
		t.Fatalf("expected 2 prediction entries, got %v", body["predictions"])
	}
	stats, ok := body["statistiques"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing statistiques: %v", body)
	}
	if stats["succes"] != 1.0 || stats["erreurs"] != 1.0 || stats["taux_succes"] != 50.0 {
		t.Fatalf("unexpected stats: %v", stats)
	}
}

func TestPredictBatchMissingKey(t *testing.T) {
	mux := testMux(t, testArtifacts(t))

	recorder, body := doJSON(t, mux, http.MethodPost, "/predict_batch", `{"records": []}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if _, ok := body["exemple"]; !ok {
		t.Fatalf("expected exemple in error body: %v", body)
	}
}

func TestModelInfoEndpoint(t *testing.T) {
	mux := testMux(t, testArtifacts(t))

	recorder, body := doJSON(t, mux, http.MethodGet, "/model_info", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}

	modele, ok := body["modele"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing modele: %v", body)
	}
	if modele["type"] != "LinearRegression" || modele["nombre_domaines"] != 8.0 {
		t.Fatalf("unexpected modele: %v", modele)
	}
	if _, ok := body["encodage_domaines"]; !ok {
		t.Fatalf("missing encodage_domaines: %v", body)
	}
	if _, ok := body["coefficients"]; !ok {
		t.Fatalf("missing coefficients: %v", body)
	}
	if _, ok := body["ordonnee_origine"]; !ok {
		t.Fatalf("missing ordonnee_origine: %v", body)
	}
	if _, ok := body["importance_caracteristiques"]; ok {
		t.Fatalf("linear model should not expose importances: %v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux := testMux(t, testArtifacts(t))

	req := httptest.NewRequest(http.MethodGet, "/predict", nil)
	recorder := httptest.NewRecorder()
	mux.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}
