package llm

import "context"

// GenerateImageRequest 描述一次同步图像生成请求。
type GenerateImageRequest struct {
	ModelID string
	Prompt  string
	Size    string
}

// GenerateImageResult 是生成结果。ImageURL 可能是远程 http(s) 地址，
// 也可能是 data URL，调用方负责落盘。
type GenerateImageResult struct {
	ImageURL string
	Text     string
}

// ImageService 是各图像提供商驱动的统一接口。
type ImageService interface {
	GenerateImage(ctx context.Context, request GenerateImageRequest) (*GenerateImageResult, error)
}
