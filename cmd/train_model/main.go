package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"pricequant/db"
	"pricequant/ml"
	"pricequant/pipeline"
)

func main() {
	dataset := flag.String("dataset", "", "dataset CSV path (default: first existing candidate file)")
	modelDir := flag.String("model_dir", "./model", "artifact output directory")
	modelType := flag.String("model_type", "linear_regression", "linear_regression or regression_tree")
	maxDepth := flag.Int("max_depth", 5, "max tree depth (regression_tree only)")
	testRatio := flag.Float64("test_ratio", 0.2, "test ratio")
	seed := flag.Int64("seed", 42, "split random seed")
	dbPath := flag.String("db", "", "optional SQLite path for the training log")
	watch := flag.Bool("watch", false, "retrain whenever the dataset file changes")
	flag.Parse()

	if *dbPath != "" {
		if err := db.InitDB(*dbPath); err != nil {
			log.Fatalf("failed to open training log database: %v", err)
		}
		defer db.Close()
	}

	config := trainConfig{
		Dataset:   *dataset,
		ModelDir:  *modelDir,
		ModelType: *modelType,
		MaxDepth:  *maxDepth,
		TestRatio: *testRatio,
		Seed:      *seed,
		LogToDB:   *dbPath != "",
	}

	source, err := trainOnce(config)
	if err != nil {
		log.Printf("training failed: %v", err)
		if !*watch {
			os.Exit(1)
		}
	}

	if *watch {
		if source == "" {
			source = firstCandidate(config)
		}
		if err := watchAndRetrain(config, source); err != nil {
			log.Fatalf("watch failed: %v", err)
		}
	}
}

type trainConfig struct {
	Dataset   string
	ModelDir  string
	ModelType string
	MaxDepth  int
	TestRatio float64
	Seed      int64
	LogToDB   bool
}

// trainOnce runs the full pipeline and returns the dataset path used.
func trainOnce(config trainConfig) (string, error) {
	var dataset *pipeline.Dataset
	var err error
	if config.Dataset != "" {
		dataset, err = pipeline.LoadCSV(config.Dataset)
	} else {
		dataset, err = pipeline.LoadFirstAvailable(pipeline.CandidateDatasetFiles())
	}
	if err != nil {
		if errors.Is(err, pipeline.ErrNoDataset) {
			return "", errors.New("no dataset found, generate the dataset first")
		}
		return "", err
	}

	log.Printf("dataset loaded: %s (%d rows, %d dropped)", dataset.Source, len(dataset.Rows), dataset.Dropped)
	printDomainDistribution(dataset)

	encoder := &ml.LabelEncoder{}
	if err := encoder.Fit(dataset.Domains()); err != nil {
		return dataset.Source, err
	}
	printEncoderMapping(encoder, dataset)

	features := make([][]float64, len(dataset.Rows))
	targets := make([]float64, len(dataset.Rows))
	for i, row := range dataset.Rows {
		code, err := encoder.Transform(row.Domaine)
		if err != nil {
			return dataset.Source, err
		}
		features[i] = []float64{float64(code), row.PrixConcurrent, row.CoutProduction, row.MargeVoulue}
		targets[i] = row.PrixMarchandise
	}

	trainX, trainY, testX, testY := ml.TrainTestSplit(features, targets, config.TestRatio, config.Seed)
	log.Printf("train set: %d samples, test set: %d samples", len(trainX), len(testX))

	model, err := fitModel(config, trainX, trainY)
	if err != nil {
		return dataset.Source, err
	}

	run := evaluate(model, trainX, trainY, testX, testY)
	run.ModelType = ml.ModelTypeName(model)
	run.Dataset = dataset.Source
	run.DataPoints = len(dataset.Rows)
	run.TrainedAt = time.Now().UTC()

	log.Printf("R² (train): %.4f", run.R2Train)
	log.Printf("R² (test): %.4f", run.R2Test)
	log.Printf("MSE: %.4f  MAE: %.4f  MAPE: %.2f%%", run.MSE, run.MAE, run.MAPE)
	printExplanation(model)

	featureNames := ml.DefaultFeatureNames()
	if err := ml.SaveArtifacts(config.ModelDir, model, encoder, featureNames); err != nil {
		return dataset.Source, err
	}
	log.Printf("artifacts saved to %s", config.ModelDir)

	if config.LogToDB {
		if err := db.SaveTrainingRun(run); err != nil {
			log.Printf("failed to record training run: %v", err)
		}
	}

	fmt.Printf("model trained: %s, %d domains, R² (test) %.1f%%\n",
		run.ModelType, encoder.Len(), run.R2Test*100)
	return dataset.Source, nil
}

func fitModel(config trainConfig, trainX [][]float64, trainY []float64) (ml.RegressionModel, error) {
	switch config.ModelType {
	case "linear_regression":
		model := &ml.LinearRegression{}
		if err := model.Train(trainX, trainY); err != nil {
			return nil, err
		}
		return model, nil
	case "regression_tree":
		model := ml.NewRegressionTree(config.MaxDepth)
		if err := model.Train(trainX, trainY); err != nil {
			return nil, err
		}
		return model, nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", config.ModelType)
	}
}

func evaluate(model ml.RegressionModel, trainX [][]float64, trainY []float64, testX [][]float64, testY []float64) db.TrainingRun {
	predict := func(features [][]float64) []float64 {
		predictions := make([]float64, len(features))
		for i, feature := range features {
			predictions[i], _ = model.Predict(feature)
		}
		return predictions
	}

	trainPred := predict(trainX)
	testPred := predict(testX)

	return db.TrainingRun{
		R2Train: ml.RSquared(trainY, trainPred),
		R2Test:  ml.RSquared(testY, testPred),
		MSE:     ml.MeanSquaredError(testY, testPred),
		MAE:     ml.MeanAbsoluteError(testY, testPred),
		MAPE:    ml.MeanAbsolutePercentageError(testY, testPred),
	}
}

func printDomainDistribution(dataset *pipeline.Dataset) {
	counts := dataset.DomainCounts()
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	total := len(dataset.Rows)
	for _, name := range names {
		log.Printf("  %s: %d rows (%.1f%%)", name, counts[name], float64(counts[name])/float64(total)*100)
	}
}

func printEncoderMapping(encoder *ml.LabelEncoder, dataset *pipeline.Dataset) {
	counts := dataset.DomainCounts()
	for code, name := range encoder.Classes() {
		log.Printf("  %s -> %d (%d rows)", name, code, counts[name])
	}
}

func printExplanation(model ml.RegressionModel) {
	names := ml.DefaultFeatureNames()
	switch m := model.(type) {
	case ml.LinearExplainer:
		for i, coef := range m.Coefficients() {
			if i < len(names) {
				log.Printf("  coefficient %s: %.4f", names[i], coef)
			}
		}
		log.Printf("  intercept: %.4f", m.Intercept())
	case ml.ImportanceExplainer:
		for i, imp := range m.FeatureImportances() {
			if i < len(names) {
				log.Printf("  importance %s: %.4f", names[i], imp)
			}
		}
	}
}

func firstCandidate(config trainConfig) string {
	if config.Dataset != "" {
		return config.Dataset
	}
	for _, path := range pipeline.CandidateDatasetFiles() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return pipeline.CandidateDatasetFiles()[0]
}

// watchAndRetrain retrains whenever the dataset file is rewritten.
func watchAndRetrain(config trainConfig, source string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(source)
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}
	log.Printf("watching %s for changes", source)

	var last time.Time
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(source) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			// Editors fire several events per save.
			if time.Since(last) < time.Second {
				continue
			}
			last = time.Now()
			log.Printf("dataset changed, retraining")
			if _, err := trainOnce(config); err != nil {
				log.Printf("training failed: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)
		}
	}
}
