package llm

import (
	"context"
	"errors"
	"strings"

	"scribbly/internal/entity"

	"github.com/sirupsen/logrus"
)

type OpenRouter struct {
	providerID string
	apiKey     string
	endpoint   string
}

func NewOpenRouter(provider *entity.DbProvider) (*OpenRouter, error) {
	if provider == nil {
		return nil, errors.New("openrouter provider config is nil")
	}

	apiKey := strings.TrimSpace(provider.APIKey)
	if apiKey == "" {
		return nil, errors.New("openrouter api key is not configured")
	}

	endpoint := strings.TrimSpace(provider.BaseURL)
	if endpoint == "" {
		endpoint = "https://openrouter.ai/api/v1/chat/completions"
	}

	return &OpenRouter{
		providerID: provider.ID,
		apiKey:     apiKey,
		endpoint:   endpoint,
	}, nil
}

func (o *OpenRouter) GenerateImage(ctx context.Context, request GenerateImageRequest) (*GenerateImageResult, error) {
	logger := providerLogger(ctx, o.providerID, request.ModelID)
	logger.WithFields(logrus.Fields{
		"prompt_preview": logSnippet(request.Prompt),
		"prompt_length":  len([]rune(request.Prompt)),
	}).Info("llm_generate_image_start")

	imageURL, text, err := GenerateImageByOpenAIProtocol(ctx, o.apiKey, o.endpoint, request.ModelID, request.Prompt)
	if err != nil {
		logger.WithError(err).Error("llm_generate_image_failed")
		return nil, err
	}

	logger.Info("llm_generate_image_success")
	return &GenerateImageResult{ImageURL: imageURL, Text: text}, nil
}

var _ ImageService = (*OpenRouter)(nil)
