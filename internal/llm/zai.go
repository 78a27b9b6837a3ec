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
)

// ZaiClient speaks the Z.ai completion API. The upstream has no streaming
// mode, so the whole reply is fetched and yielded as exactly one chunk.
type ZaiClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	MasterPrompt string
	Client       *http.Client
}

type zaiMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type zaiChatReq struct {
	Model    string   `json:"model"`
	Messages []zaiMsg `json:"messages"`
	Stream   bool     `json:"stream"`
}

type zaiChatResp struct {
	Choices []struct {
		Message zaiMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewZaiClient(baseURL, apiKey, model, masterPrompt string) *ZaiClient {
	if baseURL == "" {
		baseURL = "https://api.z.ai/api/paas/v4"
	}
	if model == "" {
		model = "zai-1.0"
	}
	return &ZaiClient{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		Model:        model,
		MasterPrompt: masterPrompt,
		Client:       &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *ZaiClient) Name() string            { return "zai" }
func (p *ZaiClient) ModelName() string       { return p.Model }
func (p *ZaiClient) VisionModelName() string { return p.Model }

func (p *ZaiClient) Stream(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		content, err := p.complete(ctx, messages)
		if err != nil {
			errs <- err
			return
		}
		if content == "" {
			return
		}
		select {
		case chunks <- content:
		case <-ctx.Done():
			errs <- ctx.Err()
		}
	}()

	return chunks, errs
}

// StreamVision fails: the upstream offers no vision endpoint.
func (p *ZaiClient) StreamVision(ctx context.Context, req VisionRequest) (<-chan string, <-chan error) {
	if err := validateVisionInput(req); err != nil {
		return failStream(err)
	}
	return failStream(fmt.Errorf("zai: provider has no image analysis support"))
}

func (p *ZaiClient) complete(ctx context.Context, messages []Message) (string, error) {
	if p.Client == nil {
		return "", errors.New("zai: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return "", errors.New("zai: api key is required")
	}

	msgs := make([]zaiMsg, 0, len(messages)+1)
	msgs = append(msgs, zaiMsg{Role: "system", Content: p.MasterPrompt})
	for _, m := range messages {
		msgs = append(msgs, zaiMsg{Role: m.Role, Content: m.Content})
	}

	b, err := json.Marshal(zaiChatReq{Model: p.Model, Stream: false, Messages: msgs})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return "", fmt.Errorf("zai: %s", msg)
	}

	var decoded zaiChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("zai: empty response")
	}
	return decoded.Choices[0].Message.Content, nil
}
