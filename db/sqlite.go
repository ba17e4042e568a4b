package db

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

var database *sql.DB

// InitDB initializes the SQLite database
func InitDB(path string) error {
	var err error
	database, err = sql.Open("sqlite3", path)
	if err != nil {
		return err
	}

	query := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        domaine TEXT NOT NULL,
        domaine_encode INTEGER NOT NULL,
        prix_concurrent REAL NOT NULL,
        cout_production REAL NOT NULL,
        marge_voulue REAL NOT NULL,
        prix_predit REAL NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_type VARCHAR(50),
        dataset TEXT,
        data_points INTEGER,
        r2_train REAL,
        r2_test REAL,
        mse REAL,
        mae REAL,
        mape REAL,
        trained_at DATETIME
    );
    `

	_, err = database.Exec(query)
	return err
}

// Close releases the database handle.
func Close() error {
	if database == nil {
		return nil
	}
	err := database.Close()
	database = nil
	return err
}

// PredictionStore satisfies pricing.Recorder over the predictions table.
type PredictionStore struct{}

func (PredictionStore) RecordPrediction(domaine string, code int, prixConcurrent, coutProduction, margeVoulue, prixPredit float64) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	_, err := database.Exec(`
        INSERT INTO predictions (
            domaine, domaine_encode, prix_concurrent, cout_production, marge_voulue, prix_predit, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		domaine, code, prixConcurrent, coutProduction, margeVoulue, prixPredit, time.Now().UTC())
	return err
}

// TrainingRun is one row of the training_log table.
type TrainingRun struct {
	ModelType  string    `json:"model_type"`
	Dataset    string    `json:"dataset"`
	DataPoints int       `json:"data_points"`
	R2Train    float64   `json:"r2_train"`
	R2Test     float64   `json:"r2_test"`
	MSE        float64   `json:"mse"`
	MAE        float64   `json:"mae"`
	MAPE       float64   `json:"mape"`
	TrainedAt  time.Time `json:"trained_at"`
}

// SaveTrainingRun records one training run.
func SaveTrainingRun(run TrainingRun) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	_, err := database.Exec(`
        INSERT INTO training_log (
            model_type, dataset, data_points, r2_train, r2_test, mse, mae, mape, trained_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ModelType, run.Dataset, run.DataPoints,
		run.R2Train, run.R2Test, run.MSE, run.MAE, run.MAPE, run.TrainedAt)
	return err
}

// LoadTrainingLog returns training runs, most recent first.
func LoadTrainingLog() ([]TrainingRun, error) {
	if database == nil {
		return nil, errors.New("database not initialized")
	}
	rows, err := database.Query(`
        SELECT model_type, dataset, data_points, r2_train, r2_test, mse, mae, mape, trained_at
        FROM training_log
        ORDER BY trained_at DESC
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]TrainingRun, 0)
	for rows.Next() {
		var run TrainingRun
		if err := rows.Scan(&run.ModelType, &run.Dataset, &run.DataPoints,
			&run.R2Train, &run.R2Test, &run.MSE, &run.MAE, &run.MAPE, &run.TrainedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
