// Package imagecheck guards remote image fetches against SSRF and sniffs
// uploaded payloads for real image signatures.
package imagecheck

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

var (
	ErrUnsafeURL     = errors.New("imagecheck: unsafe url")
	ErrUnknownFormat = errors.New("imagecheck: unknown image format")
)

// Ranges the net helpers do not classify on their own.
var reservedCIDRs = []string{
	"100.64.0.0/10", // carrier-grade NAT
	"192.0.0.0/24",  // IETF protocol assignments
	"198.18.0.0/15", // benchmarking
	"240.0.0.0/4",   // reserved
}

var reservedNets = func() []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(reservedCIDRs))
	for _, c := range reservedCIDRs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}()

func blockedIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
		return true
	}
	for _, n := range reservedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ValidateURL enforces the fetch policy for remote images: HTTPS only, a
// hostname must be present, and no address the host resolves to may land in
// loopback, private, link-local, multicast, or reserved space. Resolution
// happens once at validation time; a DNS answer that changes afterwards is
// accepted residual risk.
func ValidateURL(ctx context.Context, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsafeURL, err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("%w: only HTTPS URLs are allowed", ErrUnsafeURL)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: missing hostname", ErrUnsafeURL)
	}

	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return fmt.Errorf("%w: cannot resolve host %q", ErrUnsafeURL, host)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("%w: host %q has no addresses", ErrUnsafeURL, host)
	}
	for _, a := range addrs {
		if blockedIP(a.IP) {
			return fmt.Errorf("%w: host %q resolves to a private/internal IP", ErrUnsafeURL, host)
		}
	}
	return nil
}

var (
	pngSig   = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	gif87Sig = []byte("GIF87a")
	gif89Sig = []byte("GIF89a")
	riffSig  = []byte("RIFF")
	webpSig  = []byte("WEBP")
)

// ValidateContent sniffs magic bytes and returns the detected MIME type.
// Only JPEG, PNG, GIF and WebP pass; declared content types are ignored.
func ValidateContent(data []byte) (string, error) {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg", nil
	case len(data) >= len(pngSig) && bytes.Equal(data[:len(pngSig)], pngSig):
		return "image/png", nil
	case len(data) >= len(gif87Sig) && (bytes.Equal(data[:6], gif87Sig) || bytes.Equal(data[:6], gif89Sig)):
		return "image/gif", nil
	case len(data) >= 12 && bytes.Equal(data[:4], riffSig) && bytes.Equal(data[8:12], webpSig):
		return "image/webp", nil
	default:
		return "", fmt.Errorf("%w: invalid image format", ErrUnknownFormat)
	}
}
