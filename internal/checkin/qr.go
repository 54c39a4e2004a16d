// Package checkin encodes the per-event check-in QR code and matches
// scanned text back to an event.
package checkin

import (
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"
)

const payloadPrefix = "alumni-checkin:"

// DefaultSize is the rendered QR image edge in pixels.
const DefaultSize = 256

// Payload returns the text encoded in an event's QR code.
func Payload(eventID string) string {
	return payloadPrefix + eventID
}

// RenderPNG renders the event's check-in QR code as a PNG image.
func RenderPNG(eventID string, size int) ([]byte, error) {
	if eventID == "" {
		return nil, fmt.Errorf("event id is required")
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(Payload(eventID), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// Matches reports whether scanned text belongs to the event. Any text that
// contains the event id is accepted, so a plain id, our payload or a deep
// link carrying the id all work.
func Matches(scanned, eventID string) bool {
	scanned = strings.TrimSpace(scanned)
	return eventID != "" && scanned != "" && strings.Contains(scanned, eventID)
}
