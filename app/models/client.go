package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"FreightDocAI/app/restclient"
)

const (
	endpoint          = "/v1/chat/completions"
	embeddingEndpoint = "/v1/embeddings"

	defaultTemperature = 0.0
)

var _ Interface = &LLMClient{}

type LLMClient struct {
	restClient      restclient.Interface
	cache           sync.Map
	model           string
	embeddingsModel string
	timeout         time.Duration
	maxRetries      int
}

type ClientConfig struct {
	BaseURL         string
	Model           string
	EmbeddingsModel string
	Timeout         time.Duration
	MaxRetries      int
}

func NewLLMClient(cfg ClientConfig) *LLMClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:1234"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &LLMClient{
		restClient:      restclient.NewRestClient(cfg.BaseURL, nil),
		model:           cfg.Model,
		embeddingsModel: cfg.EmbeddingsModel,
		timeout:         cfg.Timeout,
		maxRetries:      cfg.MaxRetries,
	}
}

func (mc *LLMClient) Generate(ctx context.Context, messages []Message) (string, error) {
	payload := requestPayload{
		Model:       mc.model,
		Messages:    messages,
		Temperature: defaultTemperature,
		MaxTokens:   -1,
	}

	response, err := mc.sendRequestAndParse(ctx, payload)
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errors.New("empty LLM response")
	}
	return response.Choices[0].Message.Content, nil
}

func (mc *LLMClient) sendRequestAndParse(ctx context.Context, payload requestPayload) (*ResponseLLM, error) {
	var err error
	var response []byte
	var status int
	var generatedResponse ResponseLLM

	for i := 0; i < mc.maxRetries; i++ {
		select {
		case <-ctx.Done():
			log.Println("🚨 Request canceled before execution")
			return nil, ctx.Err()
		default:
			if err != nil {
				time.Sleep(time.Duration(math.Pow(2, float64(i))) * 100 * time.Millisecond)
			}
			attemptCtx, cancel := context.WithTimeout(ctx, mc.timeout)
			response, status, err = mc.restClient.Post(attemptCtx, endpoint, payload, nil)
			cancel()
			if err != nil {
				log.Printf("⚠️ Attempt %d failed: HTTP %d | Error: %v", i+1, status, err)
				continue
			}
			if status != http.StatusOK {
				err = fmt.Errorf("unexpected status %d: %s", status, string(response))
				log.Printf("⚠️ Attempt %d failed: %v", i+1, err)
				continue
			}

			if err = json.Unmarshal(response, &generatedResponse); err != nil {
				log.Printf("⚠️ Error parsing response: %v", err)
				continue
			}

			return &generatedResponse, nil
		}
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", mc.maxRetries, err)
}
