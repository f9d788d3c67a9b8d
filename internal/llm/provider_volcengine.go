package llm

import (
	"context"
	"errors"
	"io"
	"strings"

	"scribbly/internal/entity"

	"github.com/sirupsen/logrus"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	volcModel "github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	"github.com/volcengine/volcengine-go-sdk/volcengine"
)

// 文档: https://www.volcengine.com/docs/82379/1824121

type Volcengine struct {
	providerID string
	client     *arkruntime.Client
}

func NewVolcengine(provider *entity.DbProvider) (*Volcengine, error) {
	if provider == nil {
		return nil, errors.New("volcengine provider config is nil")
	}
	apiKey := strings.TrimSpace(provider.APIKey)
	if apiKey == "" {
		return nil, errors.New("volcengine api key is not configured")
	}
	return &Volcengine{
		providerID: provider.ID,
		client:     arkruntime.NewClientWithApiKey(apiKey),
	}, nil
}

func (v *Volcengine) GenerateImage(ctx context.Context, request GenerateImageRequest) (*GenerateImageResult, error) {
	logger := providerLogger(ctx, v.providerID, request.ModelID)
	logger.WithFields(logrus.Fields{
		"prompt_preview": logSnippet(request.Prompt),
		"size":           strings.TrimSpace(request.Size),
	}).Info("llm_generate_image_start")

	size := strings.TrimSpace(request.Size)
	if size == "" {
		size = "2K"
	}

	var sequentialImageGeneration volcModel.SequentialImageGeneration = "disabled"
	generateReq := volcModel.GenerateImagesRequest{
		Model:                     request.ModelID,
		Prompt:                    request.Prompt,
		Size:                      volcengine.String(size),
		ResponseFormat:            volcengine.String(volcModel.GenerateImagesResponseFormatURL),
		Watermark:                 volcengine.Bool(false),
		SequentialImageGeneration: &sequentialImageGeneration,
	}

	stream, err := v.client.GenerateImagesStreaming(ctx, generateReq)
	if err != nil {
		logger.WithError(err).Error("llm_generate_image_failed")
		return nil, err
	}
	defer stream.Close()

	var (
		imageURL      string
		assistantText string
	)
	for {
		recv, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.WithError(err).Error("volcengine stream recv failed")
			return nil, err
		}
		switch recv.Type {
		case "image_generation.partial_failed":
			if recv.Error != nil {
				logger.WithField("code", recv.Error.Code).Error("volcengine partial failure")
				assistantText = recv.Error.Message
				if strings.EqualFold(recv.Error.Code, "InternalServiceError") {
					return nil, errors.New(recv.Error.Message)
				}
			}
		case "image_generation.partial_succeeded":
			if recv.Error == nil && recv.Url != nil && imageURL == "" {
				imageURL = *recv.Url
			}
		}
	}

	if strings.TrimSpace(imageURL) == "" {
		if assistantText != "" {
			return nil, errors.New(assistantText)
		}
		return nil, errors.New("volcengine response did not include image data")
	}

	logger.Info("llm_generate_image_success")
	return &GenerateImageResult{ImageURL: imageURL, Text: assistantText}, nil
}

var _ ImageService = (*Volcengine)(nil)
