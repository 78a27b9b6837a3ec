package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chatgate/internal/imagecheck"
)

const testMasterPrompt = "You are a domain-restricted assistant."

type capturedReq struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

func drainStream(t *testing.T, chunks <-chan string, errs <-chan error) ([]string, error) {
	t.Helper()
	var got []string
	for c := range chunks {
		got = append(got, c)
	}
	return got, <-errs
}

func newSSEServer(t *testing.T, capture *capturedReq, deltas ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		if capture != nil {
			if err := json.Unmarshal(body, capture); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, d := range deltas {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", d)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func newOpenAIForTest(url string) *OpenAIClient {
	return NewOpenAIClient(url, "test-key", "text-model", "vision-model", testMasterPrompt)
}

func TestOpenAIStream_MasterPromptAndChunkOrder(t *testing.T) {
	var captured capturedReq
	srv := newSSEServer(t, &captured, "Hello", " world")
	defer srv.Close()

	p := newOpenAIForTest(srv.URL)
	chunks, errs := p.Stream(context.Background(), []Message{{Role: "user", Content: "hi"}})
	got, err := drainStream(t, chunks, errs)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(got) != 2 || got[0] != "Hello" || got[1] != " world" {
		t.Fatalf("unexpected chunks: %v", got)
	}

	if !captured.Stream {
		t.Fatalf("expected stream=true request")
	}
	if captured.Model != "text-model" {
		t.Fatalf("unexpected model %q", captured.Model)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("expected master prompt + user message, got %d messages", len(captured.Messages))
	}
	if captured.Messages[0].Role != "developer" {
		t.Fatalf("master prompt role = %q", captured.Messages[0].Role)
	}
	var mp string
	if err := json.Unmarshal(captured.Messages[0].Content, &mp); err != nil || mp != testMasterPrompt {
		t.Fatalf("master prompt content = %q (%v)", mp, err)
	}
}

func TestOpenAIStream_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := newOpenAIForTest(srv.URL)
	chunks, errs := p.Stream(context.Background(), []Message{{Role: "user", Content: "hi"}})
	got, err := drainStream(t, chunks, errs)
	if err == nil {
		t.Fatalf("expected upstream error")
	}
	if len(got) != 0 {
		t.Fatalf("expected no chunks on failure, got %v", got)
	}
}

func TestOpenAIStreamVision_InputExclusivity(t *testing.T) {
	p := newOpenAIForTest("http://unused.invalid")

	for _, req := range []VisionRequest{
		{Prompt: "p"},
		{Prompt: "p", ImageURL: "https://8.8.8.8/cat.jpg", ImagePayload: "QUJD"},
	} {
		chunks, errs := p.StreamVision(context.Background(), req)
		if _, err := drainStream(t, chunks, errs); !errors.Is(err, ErrImageInput) {
			t.Fatalf("expected ErrImageInput, got %v", err)
		}
	}
}

func TestOpenAIStreamVision_URLPolicy(t *testing.T) {
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer srv.Close()

	p := newOpenAIForTest(srv.URL)
	for _, bad := range []string{
		"http://example.com/cat.jpg",
		"https://192.168.1.1/cat.jpg",
	} {
		chunks, errs := p.StreamVision(context.Background(), VisionRequest{Prompt: "p", ImageURL: bad})
		if _, err := drainStream(t, chunks, errs); !errors.Is(err, imagecheck.ErrUnsafeURL) {
			t.Fatalf("expected unsafe url error for %s, got %v", bad, err)
		}
	}
	if hit {
		t.Fatalf("provider endpoint must not be reached when url validation fails")
	}
}

func visionImageURL(t *testing.T, captured *capturedReq) string {
	t.Helper()
	last := captured.Messages[len(captured.Messages)-1]
	var parts []struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		ImageURL *struct {
			URL string `json:"url"`
		} `json:"image_url"`
	}
	if err := json.Unmarshal(last.Content, &parts); err != nil {
		t.Fatalf("decode content parts: %v", err)
	}
	if len(parts) != 2 || parts[0].Type != "text" || parts[1].ImageURL == nil {
		t.Fatalf("unexpected content parts: %+v", parts)
	}
	return parts[1].ImageURL.URL
}

func TestOpenAIStreamVision_PayloadBecomesDataURL(t *testing.T) {
	var captured capturedReq
	srv := newSSEServer(t, &captured, "a cat")
	defer srv.Close()

	png := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}, 0, 0, 0, 13)
	payload := base64.StdEncoding.EncodeToString(png)

	p := newOpenAIForTest(srv.URL)
	chunks, errs := p.StreamVision(context.Background(), VisionRequest{Prompt: "what is it", ImagePayload: payload})
	if _, err := drainStream(t, chunks, errs); err != nil {
		t.Fatalf("stream vision: %v", err)
	}

	if captured.Model != "vision-model" {
		t.Fatalf("unexpected model %q", captured.Model)
	}
	url := visionImageURL(t, &captured)
	want := "data:image/png;base64," + payload
	if url != want {
		t.Fatalf("data url = %q, want %q", url, want)
	}
}

func TestOpenAIStreamVision_DataURLPassthrough(t *testing.T) {
	var captured capturedReq
	srv := newSSEServer(t, &captured, "ok")
	defer srv.Close()

	dataURL := "data:image/jpeg;base64,AAAA"
	p := newOpenAIForTest(srv.URL)
	chunks, errs := p.StreamVision(context.Background(), VisionRequest{Prompt: "p", ImagePayload: dataURL})
	if _, err := drainStream(t, chunks, errs); err != nil {
		t.Fatalf("stream vision: %v", err)
	}
	if got := visionImageURL(t, &captured); got != dataURL {
		t.Fatalf("expected data url passthrough, got %q", got)
	}
}

func TestOpenAIStreamVision_PayloadRejections(t *testing.T) {
	p := newOpenAIForTest("http://unused.invalid")

	chunks, errs := p.StreamVision(context.Background(), VisionRequest{Prompt: "p", ImagePayload: "not$$base64"})
	if _, err := drainStream(t, chunks, errs); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("expected ErrBadPayload, got %v", err)
	}

	notImage := base64.StdEncoding.EncodeToString([]byte("just some text"))
	chunks, errs = p.StreamVision(context.Background(), VisionRequest{Prompt: "p", ImagePayload: notImage})
	if _, err := drainStream(t, chunks, errs); !errors.Is(err, imagecheck.ErrUnknownFormat) {
		t.Fatalf("expected unknown format error, got %v", err)
	}
}

func TestZaiStream_SingleChunkAndSystemPrompt(t *testing.T) {
	var captured capturedReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"the whole reply at once"}}]}`)
	}))
	defer srv.Close()

	p := NewZaiClient(srv.URL, "test-key", "zai-1.0", testMasterPrompt)
	chunks, errs := p.Stream(context.Background(), []Message{{Role: "user", Content: "hi"}})
	got, err := drainStream(t, chunks, errs)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("non-streaming provider must yield exactly one chunk, got %d", len(got))
	}
	if got[0] != "the whole reply at once" {
		t.Fatalf("unexpected chunk %q", got[0])
	}

	if captured.Stream {
		t.Fatalf("zai request must not ask for streaming")
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Fatalf("expected system master prompt first, got %+v", captured.Messages)
	}
	var mp string
	if err := json.Unmarshal(captured.Messages[0].Content, &mp); err != nil || mp != testMasterPrompt {
		t.Fatalf("master prompt content = %q (%v)", mp, err)
	}
}

func TestZaiStreamVision_Unsupported(t *testing.T) {
	p := NewZaiClient("http://unused.invalid", "test-key", "", testMasterPrompt)
	chunks, errs := p.StreamVision(context.Background(), VisionRequest{Prompt: "p", ImageURL: "https://8.8.8.8/cat.jpg"})
	_, err := drainStream(t, chunks, errs)
	if err == nil || !strings.Contains(err.Error(), "no image analysis") {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}
