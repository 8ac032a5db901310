package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"foodgram/internal/observability"
)

const (
	// ShortLinkCodeLength is the number of symbols in a generated code.
	ShortLinkCodeLength = 8
	// ShortLinkMaxAttempts bounds the number of candidates drawn per link.
	ShortLinkMaxAttempts = 100

	shortLinkAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// Largest multiple of len(alphabet) that fits in a byte; higher bytes are
	// rejected so every symbol is equally likely.
	shortLinkByteLimit = 256 - 256%len(shortLinkAlphabet)
)

// ErrShortLinkExhausted means every candidate drawn was already taken.
var ErrShortLinkExhausted = errors.New("short link generation exhausted its attempt bound")

// ShortLinkLookup reports whether a fully-qualified short link is already in use.
type ShortLinkLookup func(ctx context.Context, link string) (bool, error)

// GenerateShortLink draws codes from rnd until lookup reports a free one and
// returns it prefixed with domain. domain is expected to end with "/".
func GenerateShortLink(ctx context.Context, domain string, lookup ShortLinkLookup, maxAttempts int, rnd io.Reader) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = ShortLinkMaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		code, err := randomCode(rnd, ShortLinkCodeLength)
		if err != nil {
			return "", fmt.Errorf("read random source: %w", err)
		}
		link := domain + code

		taken, err := lookup(ctx, link)
		if err != nil {
			return "", err
		}
		if !taken {
			observability.ShortLinkAttempts.Observe(float64(attempt))
			return link, nil
		}
	}

	observability.ShortLinkExhausted.Inc()
	return "", ErrShortLinkExhausted
}

// IsShortLinkCode reports whether code has the shape GenerateShortLink produces.
func IsShortLinkCode(code string) bool {
	if len(code) != ShortLinkCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}

func randomCode(rnd io.Reader, n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := io.ReadFull(rnd, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= shortLinkByteLimit {
				continue
			}
			out = append(out, shortLinkAlphabet[int(b)%len(shortLinkAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
