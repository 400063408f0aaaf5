// Package qr renders onboarding URLs as PNG QR codes.
package qr

import (
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"

	"github.com/bft-labs/obsrelay/internal/ports"
)

// DefaultSize is the edge length of generated images in pixels.
const DefaultSize = 256

// Encoder implements ports.OnboardingEncoder.
type Encoder struct {
	Size  int
	Level qrcode.RecoveryLevel
}

// NewEncoder creates an encoder with medium error correction.
func NewEncoder() *Encoder {
	return &Encoder{Size: DefaultSize, Level: qrcode.Medium}
}

// Encode returns url as a data:image/png;base64 QR code.
func (e *Encoder) Encode(url string) (ports.OnboardingArtifact, error) {
	if url == "" {
		return ports.OnboardingArtifact{}, fmt.Errorf("qr: empty url")
	}
	png, err := qrcode.Encode(url, e.Level, e.Size)
	if err != nil {
		return ports.OnboardingArtifact{}, fmt.Errorf("qr: encode %s: %w", url, err)
	}
	return ports.OnboardingArtifact{
		Image: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		URL:   url,
	}, nil
}
