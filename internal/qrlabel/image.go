package qrlabel

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"regexp"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Label geometry for a 5x5 cm print at 300 DPI: 590 px wide. The code takes
// the top of the canvas at ~95% width; a fixed text strip sits below it, so
// the canvas runs taller than wide.
const (
	labelWidth   = 590
	qrSize       = 560
	qrMarginX    = (labelWidth - qrSize) / 2
	qrMarginTop  = 10
	textTop      = qrMarginTop + qrSize + 40
	lineSpacing  = 46
	canvasHeight = textTop + 3*lineSpacing + 20
	// Fixed point size chosen for legibility at the physical print size,
	// never derived from the data.
	fontPoints = 9
	fontDPI    = 300
)

var labelFace font.Face

func init() {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		panic(fmt.Errorf("failed to parse label font: %w", err))
	}
	labelFace, err = opentype.NewFace(f, &opentype.FaceOptions{
		Size:    fontPoints,
		DPI:     fontDPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		panic(fmt.Errorf("failed to build label font face: %w", err))
	}
}

// RenderImage renders a print-ready PNG label: white background, the QR
// code on top and three human-readable lines below (serial, "marca — color",
// location).
func RenderImage(payload string, serie, marca, colorName, location string) ([]byte, error) {
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to build QR code: %w", err)
	}
	qr.DisableBorder = true
	qrImg := qr.Image(qrSize)

	canvas := image.NewRGBA(image.Rect(0, 0, labelWidth, canvasHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(canvas,
		image.Rect(qrMarginX, qrMarginTop, qrMarginX+qrSize, qrMarginTop+qrSize),
		qrImg, qrImg.Bounds().Min, draw.Over)

	lines := []string{
		serie,
		fmt.Sprintf("%s — %s", marca, colorName),
		location,
	}
	for i, line := range lines {
		drawCenteredText(canvas, line, textTop+i*lineSpacing)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode label PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func drawCenteredText(dst *image.RGBA, text string, baseline int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.Black),
		Face: labelFace,
	}
	width := d.MeasureString(text)
	x := (fixed.I(labelWidth) - width) / 2
	if x < 0 {
		x = fixed.I(4)
	}
	d.Dot = fixed.Point26_6{X: x, Y: fixed.I(baseline)}
	d.DrawString(text)
}

var unsafeFilenameRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFilename reduces arbitrary label data to a safe archive entry
// name; the caller appends an index to keep names collision-resistant.
func SanitizeFilename(s string) string {
	s = strings.TrimSpace(s)
	s = unsafeFilenameRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "etiqueta"
	}
	return s
}
