package qrcode

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"image/png"
	"strings"
	"testing"
)

func TestPayloadFormat(t *testing.T) {
	got := Payload("67df3917-fa0d-44e5-b327-edcc928297f8", "d28db9a7-4cde-429e-a983-359be676944c", 0)

	mac := hmac.New(sha256.New, []byte("d28db9a7-4cde-429e-a983-359be676944c"))
	mac.Write([]byte("0"))
	want := "bankid.67df3917-fa0d-44e5-b327-edcc928297f8.0." + hex.EncodeToString(mac.Sum(nil))

	if got != want {
		t.Fatalf("payload mismatch:\n got %s\nwant %s", got, want)
	}
}

func TestPayloadRotatesEverySecond(t *testing.T) {
	p1 := Payload("token", "secret", 1)
	p2 := Payload("token", "secret", 2)
	if p1 == p2 {
		t.Fatal("expected payload to change between seconds")
	}
	if !strings.HasPrefix(p2, "bankid.token.2.") {
		t.Fatalf("unexpected payload prefix: %s", p2)
	}
	if Payload("token", "secret", -5) != Payload("token", "secret", 0) {
		t.Fatal("expected negative seconds to clamp to zero")
	}
}

func TestPayloadEmptyInputs(t *testing.T) {
	if Payload("", "secret", 1) != "" {
		t.Fatal("expected empty payload without token")
	}
	if Payload("token", "", 1) != "" {
		t.Fatal("expected empty payload without secret")
	}
}

func TestPNGDataURL(t *testing.T) {
	url, err := PNGDataURL(Payload("token", "secret", 3), 128)
	if err != nil {
		t.Fatalf("PNGDataURL failed: %v", err)
	}
	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(url, prefix) {
		t.Fatalf("unexpected data url prefix: %.40s", url)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(url, prefix))
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 128 || img.Bounds().Dy() != 128 {
		t.Fatalf("unexpected image size %v", img.Bounds())
	}
}

func TestRenderRejectsEmptyPayload(t *testing.T) {
	if _, err := PNG("", 128); err != ErrEmptyPayload {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
	if _, err := Terminal(""); err != ErrEmptyPayload {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
}

func TestTerminalRendering(t *testing.T) {
	out, err := Terminal(Payload("token", "secret", 1))
	if err != nil {
		t.Fatalf("Terminal failed: %v", err)
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) < 10 {
		t.Fatalf("expected a multi-line rendering, got %d lines", len(lines))
	}
	width := len([]rune(lines[0]))
	for i, line := range lines {
		if n := len([]rune(line)); n != width {
			t.Fatalf("line %d has width %d, want %d", i, n, width)
		}
	}
	// The quiet zone renders as light cells.
	if !strings.HasPrefix(lines[0], "██") {
		t.Fatalf("expected quiet zone at top-left, got %q", string([]rune(lines[0])[:2]))
	}
}
