package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scribbly/internal/entity"
	"scribbly/internal/utils"

	"github.com/sirupsen/logrus"
)

const (
	falAPIBaseURL      = "https://fal.run"
	falPollInterval    = 2 * time.Second
	falMaxPollAttempts = 60
)

type falImagePayload struct {
	URL     string `json:"url,omitempty"`
	Base64  string `json:"base64,omitempty"`
	B64JSON string `json:"b64_json,omitempty"`
}

func (p falImagePayload) firstURL() string {
	return strings.TrimSpace(p.URL)
}

func (p falImagePayload) firstBase64() string {
	if v := strings.TrimSpace(p.Base64); v != "" {
		return v
	}
	return strings.TrimSpace(p.B64JSON)
}

type falError struct {
	Message string `json:"message"`
}

type falEnvelope struct {
	Status      string            `json:"status,omitempty"`
	RequestID   string            `json:"request_id,omitempty"`
	ResponseURL string            `json:"response_url,omitempty"`
	StatusURL   string            `json:"status_url,omitempty"`
	Images      []falImagePayload `json:"images,omitempty"`
	Output      []falImagePayload `json:"output,omitempty"`
	Text        string            `json:"text,omitempty"`
	Error       *falError         `json:"error,omitempty"`
}

func (e *falEnvelope) imagePayloads() []falImagePayload {
	if e == nil {
		return nil
	}
	payloads := make([]falImagePayload, 0, len(e.Images)+len(e.Output))
	payloads = append(payloads, e.Images...)
	payloads = append(payloads, e.Output...)
	return payloads
}

type FalAI struct {
	providerID string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewFalAI(provider *entity.DbProvider) (*FalAI, error) {
	if provider == nil {
		return nil, errors.New("fal.ai provider config is nil")
	}
	apiKey := strings.TrimSpace(provider.APIKey)
	if apiKey == "" {
		return nil, errors.New("fal.ai api key is not configured")
	}

	baseURL := strings.TrimSpace(provider.BaseURL)
	if baseURL == "" {
		baseURL = falAPIBaseURL
	}

	return &FalAI{
		providerID: provider.ID,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (f *FalAI) GenerateImage(ctx context.Context, request GenerateImageRequest) (*GenerateImageResult, error) {
	logger := providerLogger(ctx, f.providerID, request.ModelID)
	logger.WithFields(logrus.Fields{
		"prompt_preview": logSnippet(request.Prompt),
		"size":           strings.TrimSpace(request.Size),
	}).Info("llm_generate_image_start")

	input := map[string]any{
		"prompt":     strings.TrimSpace(request.Prompt),
		"num_images": 1,
	}
	if size := strings.TrimSpace(request.Size); size != "" {
		input["image_size"] = size
	}

	envelope, err := f.submitAndWait(ctx, "/"+strings.TrimLeft(request.ModelID, "/"), input)
	if err != nil {
		logger.WithError(err).Error("llm_generate_image_failed")
		return nil, err
	}

	for _, payload := range envelope.imagePayloads() {
		if url := payload.firstURL(); url != "" {
			logger.Info("llm_generate_image_success")
			return &GenerateImageResult{ImageURL: url, Text: strings.TrimSpace(envelope.Text)}, nil
		}
		if b64 := payload.firstBase64(); b64 != "" {
			logger.Info("llm_generate_image_success")
			return &GenerateImageResult{ImageURL: utils.EnsureDataURL(b64), Text: strings.TrimSpace(envelope.Text)}, nil
		}
	}

	return nil, errors.New("fal.ai response did not include images")
}

func (f *FalAI) submitAndWait(ctx context.Context, endpoint string, input map[string]any) (*falEnvelope, error) {
	bs, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("fal.ai marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+endpoint, bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("fal.ai create request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+f.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fal.ai submit request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fal.ai read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fal.ai http %d: %s", resp.StatusCode, logSnippet(string(body)))
	}

	var envelope falEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("fal.ai decode response: %w", err)
	}
	if envelope.Error != nil {
		return nil, fmt.Errorf("fal.ai error: %s", envelope.Error.Message)
	}

	// 同步端点直接带回图片，队列端点返回轮询地址
	if len(envelope.imagePayloads()) > 0 {
		return &envelope, nil
	}

	responseURL := strings.TrimSpace(envelope.ResponseURL)
	if responseURL == "" {
		responseURL = strings.TrimSpace(envelope.StatusURL)
	}
	if responseURL == "" {
		return nil, errors.New("fal.ai response url missing")
	}

	return f.pollForCompletion(ctx, responseURL, envelope.RequestID)
}

func (f *FalAI) pollForCompletion(ctx context.Context, responseURL, requestID string) (*falEnvelope, error) {
	attempts := 0
	ticker := time.NewTicker(falPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("fal.ai poll cancelled: %w", ctx.Err())
		case <-ticker.C:
			attempts++
			envelope, done, err := f.fetchResponse(ctx, responseURL)
			if err != nil {
				return nil, err
			}
			if !done {
				logrus.WithFields(logrus.Fields{
					"request_id": requestID,
					"status":     envelope.Status,
					"attempt":    attempts,
				}).Info("falai_poll_pending")
				if attempts >= falMaxPollAttempts {
					return nil, errors.New("fal.ai polling exceeded maximum attempts")
				}
				continue
			}
			if envelope.Error != nil {
				return nil, fmt.Errorf("fal.ai error: %s", envelope.Error.Message)
			}
			if len(envelope.imagePayloads()) == 0 {
				return nil, errors.New("fal.ai completed without images")
			}
			return envelope, nil
		}
	}
}

func (f *FalAI) fetchResponse(ctx context.Context, url string) (*falEnvelope, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("fal.ai create poll request: %w", err)
	}
	req.Header.Set("Authorization", "Key "+f.apiKey)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("fal.ai poll request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("fal.ai poll read: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, false, fmt.Errorf("fal.ai poll http %d: %s", resp.StatusCode, logSnippet(string(body)))
	}

	var envelope falEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false, fmt.Errorf("fal.ai poll decode: %w", err)
	}

	status := strings.ToUpper(strings.TrimSpace(envelope.Status))
	switch status {
	case "COMPLETED", "":
		return &envelope, true, nil
	case "FAILED", "CANCELLED", "ERROR":
		if envelope.Error != nil {
			return &envelope, true, fmt.Errorf("fal.ai error: %s", envelope.Error.Message)
		}
		return &envelope, true, fmt.Errorf("fal.ai job %s", strings.ToLower(status))
	default:
		return &envelope, false, nil
	}
}

var _ ImageService = (*FalAI)(nil)
