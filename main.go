package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v2"

	"pricequant/db"
	qhttp "pricequant/http"
	"pricequant/ml"
	"pricequant/monitoring"
	"pricequant/pricing"
)

type Config struct {
	Http struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"http"`
	Model struct {
		Dir       string `yaml:"dir"`
		CacheSize int    `yaml:"cache_size"`
	} `yaml:"model"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
	} `yaml:"log"`
}

func main() {
	// 1. Load config
	config, err := loadConfig("config.yaml")
	if err != nil {
		// No logger yet.
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(config)
	defer logger.Sync()

	// 2. Initialize database
	if err := db.InitDB(config.Database.Path); err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("database initialized", zap.String("path", config.Database.Path))

	// 3. Load model artifacts. A failed load keeps the service up with
	// every endpoint answering "model not loaded".
	artifacts, err := ml.LoadArtifacts(config.Model.Dir)
	if err != nil {
		logger.Error("model artifacts not loaded", zap.String("dir", config.Model.Dir), zap.Error(err))
		artifacts = nil
	} else {
		logger.Info("model loaded",
			zap.String("type", artifacts.Info.Type),
			zap.Strings("features", artifacts.FeatureNames),
			zap.Int("domains", artifacts.Encoder.Len()))
	}

	service, err := pricing.NewService(artifacts, logger, config.Model.CacheSize)
	if err != nil {
		logger.Fatal("failed to build pricing service", zap.Error(err))
	}
	service.SetRecorder(db.PredictionStore{})

	hub := monitoring.NewEventHub(logger)
	go hub.Run()
	defer hub.Stop()
	service.SetPublisher(hub)

	// 4. Start HTTP server
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           config.Http.Port,
		AllowedOrigins: config.Http.AllowedOrigins,
	}, &qhttp.Handlers{
		Service: service,
		Logger:  logger,
		Events:  hub.HandleWS,
	}, logger)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	if err := server.Stop(); err != nil {
		logger.Warn("server forced to shutdown", zap.Error(err))
	}

	logger.Info("exiting")
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func newLogger(config *Config) *zap.Logger {
	level := zapcore.InfoLevel
	if config.Log.Level != "" {
		if parsed, err := zapcore.ParseLevel(config.Log.Level); err == nil {
			level = parsed
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	sink := zapcore.AddSync(os.Stderr)
	if config.Log.File != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   config.Log.File,
			MaxSize:    config.Log.MaxSizeMB,
			MaxBackups: config.Log.MaxBackups,
		})
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), sink, level)
	return zap.New(core)
}
