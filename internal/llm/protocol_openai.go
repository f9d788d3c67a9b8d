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

	"github.com/sirupsen/logrus"
)

type oaiImageURL struct {
	URL string `json:"url"`
}
type oaiImage struct {
	Type     string      `json:"type"` // "image_url"
	ImageURL oaiImageURL `json:"image_url"`
}

type oaiDelta struct {
	Content string     `json:"content"`
	Images  []oaiImage `json:"images"`
}
type oaiChoice struct {
	Delta        oaiDelta `json:"delta"`
	FinishReason string   `json:"finish_reason"`
	Index        int      `json:"index"`
}
type oaiStreamChunk struct {
	Choices []oaiChoice `json:"choices"`
}

type oaiMsgPart struct {
	Type string `json:"type"` // "text"
	Text string `json:"text,omitempty"`
}
type oaiMessage struct {
	Role    string       `json:"role"` // "user"
	Content []oaiMsgPart `json:"content"`
}

// GenerateImageByOpenAIProtocol 通过 OpenAI 兼容的 SSE 流式接口生成图片，
// 返回流中的第一张图片（data URL 或 http URL）。
func GenerateImageByOpenAIProtocol(ctx context.Context, apiKey, endpoint, model, prompt string) (imageDataURL string, assistantText string, err error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", "", errors.New("api key missing")
	}

	reqBody := map[string]any{
		"model": model,
		"messages": []oaiMessage{
			{Role: "user", Content: []oaiMsgPart{{Type: "text", Text: prompt}}},
		},
		"modalities": []string{"image", "text"},
		"stream":     true,
	}

	bs, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bs))
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	httpCli := &http.Client{Timeout: 0} // SSE 不要超短超时
	resp, err := httpCli.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(resp.Body)
		logrus.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"status":   resp.StatusCode,
			"body":     logSnippet(buf.String()),
		}).Error("openai protocol generate image failed")
		return "", "", fmt.Errorf("upstream http %d: %s", resp.StatusCode, logSnippet(buf.String()))
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk oaiStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			assistantText += delta.Content
		}
		// 只取第一张图
		if len(delta.Images) > 0 && delta.Images[0].ImageURL.URL != "" && imageDataURL == "" {
			imageDataURL = delta.Images[0].ImageURL.URL
		}
	}
	if err := sc.Err(); err != nil {
		return "", "", err
	}
	if strings.TrimSpace(imageDataURL) == "" {
		return "", "", errors.New("no image in streamed response")
	}
	return imageDataURL, strings.TrimSpace(assistantText), nil
}
