package main

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mihaimyh/goexplain/internal/config"
	"github.com/mihaimyh/goexplain/pkg/goexplain"
	zerologadapter "github.com/mihaimyh/goexplain/pkg/goexplain/logger/zerolog"
	prommetrics "github.com/mihaimyh/goexplain/pkg/goexplain/metrics/prometheus"
)

const metricsNamespace = "goexplain"

func newZerolog(cfg config.LogConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func newAnalyzer(cfg *config.Config, logger goexplain.Logger, metrics goexplain.Metrics) (*goexplain.Analyzer, error) {
	analyzer, err := goexplain.NewAnalyzer(goexplain.Config{
		APIKey:           cfg.LLM.APIKey,
		Model:            cfg.LLM.Model,
		Timeout:          cfg.LLM.Timeout,
		StrictValidation: cfg.LLM.Strict,
		Endpoint:         cfg.LLM.Endpoint,
		Referer:          cfg.LLM.Referer,
		Title:            cfg.LLM.Title,
		Logger:           logger,
		Metrics:          metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create analyzer: %w", err)
	}
	return analyzer, nil
}

func newMetrics(reg prometheus.Registerer) goexplain.Metrics {
	return prommetrics.NewMetrics(reg, metricsNamespace)
}

func wrapLogger(zl *zerolog.Logger) goexplain.Logger {
	return zerologadapter.NewLogger(zl)
}
