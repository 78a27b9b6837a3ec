package imagecheck

import (
	"context"
	"errors"
	"testing"
)

func TestValidateURL_SchemeAndHost(t *testing.T) {
	ctx := context.Background()

	if err := ValidateURL(ctx, "http://example.com/image.jpg"); !errors.Is(err, ErrUnsafeURL) {
		t.Fatalf("expected http to be rejected, got %v", err)
	}
	if err := ValidateURL(ctx, "ftp://example.com/image.jpg"); !errors.Is(err, ErrUnsafeURL) {
		t.Fatalf("expected ftp to be rejected, got %v", err)
	}
	if err := ValidateURL(ctx, "https:///path/to/image.jpg"); !errors.Is(err, ErrUnsafeURL) {
		t.Fatalf("expected missing hostname to be rejected, got %v", err)
	}
}

func TestValidateURL_BlockedAddresses(t *testing.T) {
	ctx := context.Background()

	blocked := []string{
		"https://localhost/image.jpg",
		"https://127.0.0.1/image.jpg",
		"https://10.0.0.1/image.jpg",
		"https://172.16.0.1/image.jpg",
		"https://192.168.1.1/image.jpg",
		"https://169.254.1.1/image.jpg",
		"https://100.64.0.1/image.jpg",
		"https://192.0.0.10/image.jpg",
		"https://198.18.0.1/image.jpg",
		"https://240.0.0.1/image.jpg",
		"https://224.0.0.1/image.jpg",
		"https://0.0.0.0/image.jpg",
		"https://[::1]/image.jpg",
		"https://[fe80::1]/image.jpg",
	}
	for _, u := range blocked {
		if err := ValidateURL(ctx, u); !errors.Is(err, ErrUnsafeURL) {
			t.Fatalf("expected %s to be rejected, got %v", u, err)
		}
	}
}

func TestValidateURL_AllowsPublicAddresses(t *testing.T) {
	ctx := context.Background()

	for _, u := range []string{
		"https://1.1.1.1/image.jpg",
		"https://8.8.8.8/image.png",
	} {
		if err := ValidateURL(ctx, u); err != nil {
			t.Fatalf("expected %s to pass, got %v", u, err)
		}
	}
}

func TestValidateContent_AcceptedFormats(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}, "image/jpeg"},
		{"png", append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}, 0, 0, 0, 13), "image/png"},
		{"gif87a", []byte("GIF87a\x00\x00\x00\x00"), "image/gif"},
		{"gif89a", []byte("GIF89a\x00\x00\x00\x00"), "image/gif"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBP"), "image/webp"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateContent(tc.data)
			if err != nil {
				t.Fatalf("ValidateContent: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestValidateContent_Rejections(t *testing.T) {
	rejected := [][]byte{
		[]byte("Not an image content"),
		[]byte("<html><body>Hello</body></html>"),
		[]byte("RIFF\x00\x00\x00\x00WAVE"), // riff but not webp
		{0xFF, 0xD8},                       // truncated jpeg signature
		{},
		nil,
	}
	for _, data := range rejected {
		if _, err := ValidateContent(data); !errors.Is(err, ErrUnknownFormat) {
			t.Fatalf("expected %q to be rejected, got %v", data, err)
		}
	}
}
