// internal/oracle/client.go
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"pos-assistant/internal/common/config"
	"pos-assistant/internal/common/logger"
	"pos-assistant/internal/models"
)

// Client talks to the GenAI classification service over HTTP.
type Client struct {
	config config.OracleConfig
	client *http.Client
	logger logger.Logger
}

func NewClient(cfg config.OracleConfig, log logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	return &Client{
		config: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: log.With(map[string]interface{}{
			"component": "oracle",
		}),
	}
}

// Classify sends the utterance plus recent history to the classification
// endpoint and returns the validated verdict. Transport failures retry
// with exponential backoff; the context deadline wins over retries.
func (c *Client) Classify(ctx context.Context, utterance string, history []models.Turn) (*models.Classification, error) {
	requestBody := map[string]interface{}{
		"message": utterance,
		"model":   c.config.Model,
	}
	if len(history) > 0 {
		requestBody["history"] = history
	}

	raw, err := c.post(ctx, "/api/ai/classify-intent", requestBody)
	if err != nil {
		return nil, err
	}

	if err := validateClassification(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	var classification models.Classification
	if err := json.Unmarshal(raw, &classification); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrClassificationFailed, err)
	}

	c.logger.Info("utterance classified", map[string]interface{}{
		"intent":     classification.Intent,
		"operation":  classification.Operation,
		"confidence": classification.Confidence,
	})

	return &classification, nil
}

// Disambiguate asks the oracle to pick from an ambiguous candidate set.
// The answer must name one of the offered candidates; anything else is a
// classification failure.
func (c *Client) Disambiguate(ctx context.Context, phrase string, candidates []models.Product) (*DisambiguationResult, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: empty candidate set", ErrClassificationFailed)
	}

	offered := make([]map[string]interface{}, len(candidates))
	for i, p := range candidates {
		offered[i] = map[string]interface{}{
			"id":   p.ID,
			"sku":  p.SKU,
			"name": p.Name,
		}
	}

	raw, err := c.post(ctx, "/api/ai/disambiguate", map[string]interface{}{
		"phrase":     phrase,
		"candidates": offered,
		"model":      c.config.Model,
	})
	if err != nil {
		return nil, err
	}

	if err := validateDisambiguation(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
	}

	var answer struct {
		ProductID  int64   `json:"productId"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal(raw, &answer); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrClassificationFailed, err)
	}

	for _, p := range candidates {
		if p.ID == answer.ProductID {
			return &DisambiguationResult{ProductID: answer.ProductID, Confidence: answer.Confidence}, nil
		}
	}
	return nil, fmt.Errorf("%w: answer %d is not an offered candidate", ErrClassificationFailed, answer.ProductID)
}

func (c *Client) post(ctx context.Context, path string, payload map[string]interface{}) ([]byte, error) {
	body, _ := json.Marshal(payload)

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrOracleTimeout
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+path, bytes.NewBuffer(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrClassificationFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, lastErr = c.client.Do(req)

		// A request cut short by the deadline is a timeout, not a retry.
		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			return nil, ErrOracleTimeout
		}

		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrOracleTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrClassificationFailed, lastErr)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: no successful response after retries", ErrClassificationFailed)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("%w: read error: %v", ErrClassificationFailed, err)
	}
	return buf.Bytes(), nil
}
