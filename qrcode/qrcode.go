package qrcode

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"image/color"
	"image/png"
	"strconv"
	"strings"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

const payloadPrefix = "bankid"

// ErrEmptyPayload is returned when asked to render an empty payload.
var ErrEmptyPayload = errors.New("qr payload is empty")

// Payload returns the animated QR content for the given elapsed seconds.
// Empty tokens or secrets yield an empty payload; negative seconds are
// treated as zero.
func Payload(qrStartToken, qrStartSecret string, seconds int) string {
	if qrStartToken == "" || qrStartSecret == "" {
		return ""
	}
	if seconds < 0 {
		seconds = 0
	}
	secs := strconv.Itoa(seconds)

	mac := hmac.New(sha256.New, []byte(qrStartSecret))
	mac.Write([]byte(secs))
	authCode := hex.EncodeToString(mac.Sum(nil))

	return strings.Join([]string{payloadPrefix, qrStartToken, secs, authCode}, ".")
}

// PNG renders payload as a square PNG of size pixels.
func PNG(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, ErrEmptyPayload
	}
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return nil, err
	}
	code, err = barcode.Scale(code, size, size)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PNGDataURL renders payload as a data:image/png;base64 URL suitable for an
// <img src>.
func PNGDataURL(payload string, size int) (string, error) {
	img, err := PNG(payload, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(img), nil
}

// Terminal renders payload with Unicode half blocks, two modules per
// character cell, surrounded by a two module quiet zone.
func Terminal(payload string) (string, error) {
	if payload == "" {
		return "", ErrEmptyPayload
	}
	code, err := qr.Encode(payload, qr.L, qr.Auto)
	if err != nil {
		return "", err
	}

	const quiet = 2
	bounds := code.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	dark := func(x, y int) bool {
		x -= quiet
		y -= quiet
		if x < 0 || y < 0 || x >= width || y >= height {
			return false
		}
		r, _, _, _ := color.GrayModel.Convert(code.At(bounds.Min.X+x, bounds.Min.Y+y)).RGBA()
		return r < 0x8000
	}

	var b strings.Builder
	for y := 0; y < height+2*quiet; y += 2 {
		for x := 0; x < width+2*quiet; x++ {
			top, bottom := dark(x, y), dark(x, y+1)
			switch {
			case top && bottom:
				b.WriteRune(' ')
			case top:
				b.WriteRune('▄')
			case bottom:
				b.WriteRune('▀')
			default:
				b.WriteRune('█')
			}
		}
		b.WriteByte('\n')
	}
	return b.String(), nil
}
