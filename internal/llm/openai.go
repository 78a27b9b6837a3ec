package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"chatgate/internal/imagecheck"
)

// OpenAIClient speaks the chat-completions API with SSE streaming. It also
// serves any OpenAI-compatible gateway via BaseURL.
type OpenAIClient struct {
	BaseURL      string
	APIKey       string
	TextModel    string
	VisionModel  string
	MasterPrompt string
	Client       *http.Client
}

type openAIMsg struct {
	Role string `json:"role"`
	// Content is a string for text turns and []openAIPart for vision turns.
	Content any `json:"content"`
}

type openAIPart struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *openAIImgPart `json:"image_url,omitempty"`
}

type openAIImgPart struct {
	URL string `json:"url"`
}

type openAIChatReq struct {
	Model    string      `json:"model"`
	Messages []openAIMsg `json:"messages"`
	Stream   bool        `json:"stream"`
}

type openAIStreamResp struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewOpenAIClient(baseURL, apiKey, textModel, visionModel, masterPrompt string) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		BaseURL:      baseURL,
		APIKey:       apiKey,
		TextModel:    textModel,
		VisionModel:  visionModel,
		MasterPrompt: masterPrompt,
		// streams can outlive any fixed timeout; ctx controls cancellation
		Client: &http.Client{},
	}
}

func (p *OpenAIClient) Name() string            { return "openai" }
func (p *OpenAIClient) ModelName() string       { return p.TextModel }
func (p *OpenAIClient) VisionModelName() string { return p.VisionModel }

// The master prompt goes first so it dominates behavior.
func (p *OpenAIClient) withMasterPrompt(msgs []openAIMsg) []openAIMsg {
	out := make([]openAIMsg, 0, len(msgs)+1)
	out = append(out, openAIMsg{Role: "developer", Content: p.MasterPrompt})
	return append(out, msgs...)
}

func (p *OpenAIClient) Stream(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	msgs := make([]openAIMsg, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, openAIMsg{Role: m.Role, Content: m.Content})
	}
	return p.stream(ctx, p.TextModel, msgs)
}

// StreamVision runs the image defenses before any network call: URL inputs
// must clear the SSRF policy, payload inputs must decode and carry a known
// image signature.
func (p *OpenAIClient) StreamVision(ctx context.Context, req VisionRequest) (<-chan string, <-chan error) {
	if err := validateVisionInput(req); err != nil {
		return failStream(err)
	}

	var imageRef string
	if req.ImageURL != "" {
		if err := imagecheck.ValidateURL(ctx, req.ImageURL); err != nil {
			return failStream(err)
		}
		imageRef = req.ImageURL
	} else {
		ref, err := imageDataURL(req.ImagePayload)
		if err != nil {
			return failStream(err)
		}
		imageRef = ref
	}

	msgs := make([]openAIMsg, 0, len(req.Prior)+1)
	for _, m := range req.Prior {
		msgs = append(msgs, openAIMsg{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, openAIMsg{
		Role: "user",
		Content: []openAIPart{
			{Type: "text", Text: req.Prompt},
			{Type: "image_url", ImageURL: &openAIImgPart{URL: imageRef}},
		},
	})
	return p.stream(ctx, p.VisionModel, msgs)
}

func (p *OpenAIClient) stream(ctx context.Context, model string, msgs []openAIMsg) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		if p.Client == nil {
			errs <- errors.New("openai: http client is nil")
			return
		}
		if strings.TrimSpace(p.APIKey) == "" {
			errs <- errors.New("openai: api key is required")
			return
		}
		model := strings.TrimSpace(model)
		if model == "" {
			errs <- errors.New("openai: model is required")
			return
		}

		reqBody := openAIChatReq{
			Model:    model,
			Stream:   true,
			Messages: p.withMasterPrompt(msgs),
		}
		b, err := json.Marshal(reqBody)
		if err != nil {
			errs <- err
			return
		}

		url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			errs <- err
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.APIKey)

		resp, err := p.Client.Do(req)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
			msg := strings.TrimSpace(string(body))
			if msg == "" {
				msg = fmt.Sprintf("status %d", resp.StatusCode)
			}
			errs <- fmt.Errorf("openai: %s", msg)
			return
		}

		sc := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)

		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}
			var decoded openAIStreamResp
			if err := json.Unmarshal([]byte(data), &decoded); err != nil {
				errs <- err
				return
			}
			if decoded.Error != nil && decoded.Error.Message != "" {
				errs <- errors.New(decoded.Error.Message)
				return
			}
			if len(decoded.Choices) == 0 {
				continue
			}
			delta := decoded.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case chunks <- delta:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}

		if err := sc.Err(); err != nil {
			errs <- err
			return
		}
	}()

	return chunks, errs
}
