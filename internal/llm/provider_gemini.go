package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"scribbly/internal/entity"

	"github.com/sirupsen/logrus"
)

// Gemini 走 Google 风格的 SSE 流式接口，而不是 OpenAI 兼容协议。
const geminiStreamEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:streamGenerateContent?alt=sse"

type (
	geminiInlineData struct {
		MimeType string `json:"mimeType,omitempty"`
		Data     string `json:"data,omitempty"`
	}
	geminiFileData struct {
		FileURI  string `json:"fileUri,omitempty"`
		MimeType string `json:"mimeType,omitempty"`
	}
	geminiPart struct {
		Text       string            `json:"text,omitempty"`
		InlineData *geminiInlineData `json:"inlineData,omitempty"`
		FileData   *geminiFileData   `json:"fileData,omitempty"`
	}
	geminiContent struct {
		Role  string       `json:"role,omitempty"`
		Parts []geminiPart `json:"parts"`
	}
	geminiRequest struct {
		Contents []geminiContent `json:"contents"`
	}
)

type (
	geminiCandidate struct {
		FinishReason string        `json:"finishReason,omitempty"`
		Content      geminiContent `json:"content"`
	}
	geminiError struct {
		Message string `json:"message"`
	}
	geminiStreamChunk struct {
		Candidates []geminiCandidate `json:"candidates"`
		Error      *geminiError      `json:"error,omitempty"`
	}
)

type Gemini struct {
	providerID string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewGemini(provider *entity.DbProvider) (*Gemini, error) {
	if provider == nil {
		return nil, errors.New("gemini provider config is nil")
	}
	apiKey := strings.TrimSpace(provider.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is not configured")
	}
	return &Gemini{
		providerID: provider.ID,
		apiKey:     apiKey,
		baseURL:    strings.TrimSpace(provider.BaseURL),
		httpClient: &http.Client{Timeout: 0},
	}, nil
}

func (g *Gemini) GenerateImage(ctx context.Context, request GenerateImageRequest) (*GenerateImageResult, error) {
	logger := providerLogger(ctx, g.providerID, request.ModelID)
	logger.WithFields(logrus.Fields{
		"prompt_preview": logSnippet(request.Prompt),
		"prompt_length":  len([]rune(request.Prompt)),
	}).Info("llm_generate_image_start")

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: strings.TrimSpace(request.Prompt)}}},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("gemini marshal request: %w", err)
	}

	targetURL := resolveGeminiEndpoint(g.baseURL, request.ModelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("gemini create request: %w", err)
	}
	// 用 header 传 key，避免 API key 出现在 URL 日志里
	req.Header.Set("x-goog-api-key", g.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(resp.Body)
		logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   logSnippet(buf.String()),
		}).Error("gemini generate image http error")
		return nil, fmt.Errorf("gemini http %d: %s", resp.StatusCode, logSnippet(buf.String()))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	var (
		imageURL      string
		imageMimeType string
		imageData     string
		textBuilder   strings.Builder
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			break
		}

		var chunk geminiStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			logger.WithError(err).Warn("gemini failed to unmarshal stream chunk")
			continue
		}
		if chunk.Error != nil && strings.TrimSpace(chunk.Error.Message) != "" {
			logger.WithField("message", chunk.Error.Message).Error("gemini stream error chunk")
			continue
		}

		for _, cand := range chunk.Candidates {
			for _, part := range cand.Content.Parts {
				if text := strings.TrimSpace(part.Text); text != "" {
					if textBuilder.Len() > 0 {
						textBuilder.WriteString("\n")
					}
					textBuilder.WriteString(text)
				}
				// InlineData 是分片的 base64 图片数据，拼起来再包成 data URL
				if part.InlineData != nil && part.InlineData.Data != "" {
					if part.InlineData.MimeType != "" {
						imageMimeType = part.InlineData.MimeType
					}
					imageData += strings.TrimSpace(part.InlineData.Data)
				}
				if part.FileData != nil && strings.TrimSpace(part.FileData.FileURI) != "" && imageURL == "" {
					imageURL = strings.TrimSpace(part.FileData.FileURI)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("gemini stream read error: %w", err)
	}

	if imageData != "" {
		if imageMimeType == "" {
			imageMimeType = "image/png"
		}
		imageURL = fmt.Sprintf("data:%s;base64,%s", imageMimeType, imageData)
	}
	if imageURL == "" {
		logger.Warn("gemini response did not include image data")
		return nil, errors.New("gemini response did not include image data")
	}

	logger.Info("llm_generate_image_success")
	return &GenerateImageResult{
		ImageURL: imageURL,
		Text:     strings.TrimSpace(textBuilder.String()),
	}, nil
}

// resolveGeminiEndpoint builds the request URL from a provided endpoint template or base URL.
// - If endpoint contains "%s", it is treated as a fmt template and will be formatted with model.
// - If endpoint is a bare base URL, the default Gemini suffix is appended.
// - If empty, fall back to the public Gemini endpoint.
func resolveGeminiEndpoint(endpoint, model string) string {
	base := strings.TrimSpace(endpoint)
	if base == "" {
		return fmt.Sprintf(geminiStreamEndpoint, model)
	}

	if strings.Contains(base, "%s") {
		return fmt.Sprintf(base, model)
	}

	base = strings.TrimRight(base, "/")
	return fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse", base, model)
}

var _ ImageService = (*Gemini)(nil)
