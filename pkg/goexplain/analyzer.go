package goexplain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mihaimyh/goexplain/pkg/completion"
	"github.com/mihaimyh/goexplain/pkg/completion/openrouter"
)

var validate = validator.New()

// Analyzer turns webhook events into AnalysisResults. It is immutable after
// construction and safe for concurrent use.
type Analyzer struct {
	apiKey  string
	model   string
	timeout time.Duration
	strict  bool
	client  completion.Client
	logger  Logger
	metrics Metrics
}

// NewAnalyzer creates an Analyzer from config.
func NewAnalyzer(config Config) (*Analyzer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = &NoopLogger{}
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = &NoopMetrics{}
	}

	apiKey := strings.TrimSpace(config.APIKey)

	client := config.Client
	if client == nil && apiKey != "" {
		provider, err := openrouter.NewProvider(openrouter.Config{
			APIKey:     apiKey,
			Endpoint:   config.Endpoint,
			Referer:    config.Referer,
			Title:      config.Title,
			HTTPClient: config.HTTPClient,
			Metrics:    metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("create completion provider: %w", err)
		}
		client = provider
	}

	return &Analyzer{
		apiKey:  apiKey,
		model:   model,
		timeout: timeout,
		strict:  config.StrictValidation,
		client:  client,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Model returns the configured completion model.
func (a *Analyzer) Model() string {
	return a.model
}

// ModelEnabled reports whether analyses will attempt the completion service.
func (a *Analyzer) ModelEnabled() bool {
	return a.apiKey != "" && a.client != nil
}

// Analyze explains e. It never fails: any error on the model path is logged
// and replaced by the fallback classification.
func (a *Analyzer) Analyze(ctx context.Context, e Event) AnalysisResult {
	start := time.Now()
	eventType := e.Type()

	fields := []Field{
		{"requestId", uuid.NewString()},
		{"eventType", eventType},
		{"objectId", e.ObjectID()},
	}
	fields = append(fields, e.envelopeFields()...)
	a.logger.Info("analyzing event", fields...)

	source := SourceModel
	result, err := a.analyzeWithModel(ctx, e)
	if err != nil {
		reason := failureReason(err)
		if errors.Is(err, ErrConfigurationMissing) {
			a.logger.Warn("completion credential not set, using fallback", append(fields, Field{"reason", reason})...)
		} else {
			a.logger.Error("llm analysis failed", append(fields, Field{"reason", reason}, Field{"error", err.Error()})...)
		}
		a.metrics.RecordFallback(reason)
		result = Fallback(eventType)
		source = SourceFallback
	}

	a.metrics.RecordAnalysis(eventType, source)
	a.metrics.RecordImpactLevel(result.CustomerImpactLevel)
	a.metrics.RecordAnalysisDuration(eventType, time.Since(start))
	return result
}

// analyzeWithModel is the fallible model path. Analyze is its only caller and
// resolves every error it returns.
func (a *Analyzer) analyzeWithModel(ctx context.Context, e Event) (result AnalysisResult, err error) {
	if !a.ModelEnabled() {
		return AnalysisResult{}, ErrConfigurationMissing
	}

	defer func() {
		if r := recover(); r != nil {
			result, err = AnalysisResult{}, fmt.Errorf("%w: panic: %v", ErrTransportFailure, r)
		}
	}()

	prompts := BuildPrompts(e)

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.client.Complete(callCtx, completion.Request{
		Model: a.model,
		Messages: []completion.Message{
			{Role: completion.RoleSystem, Content: prompts.System},
			{Role: completion.RoleUser, Content: prompts.User},
		},
		Temperature: Temperature,
	})
	if err != nil {
		return AnalysisResult{}, classifyCompletionError(err)
	}

	result, coerced, err := parseModelOutput(e.Type(), raw)
	if err != nil {
		return AnalysisResult{}, err
	}
	if coerced {
		a.metrics.RecordImpactCoerced()
	}

	if a.strict {
		if err := validate.Struct(result); err != nil {
			return AnalysisResult{}, fmt.Errorf("%w: %v", ErrInvalidResult, err)
		}
	}

	return result, nil
}
