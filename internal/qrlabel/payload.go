// Package qrlabel encodes inventory label payloads and renders them as
// print-ready QR images.
package qrlabel

import (
	"encoding/json"
	"time"

	"inventario-go/internal/apperr"
	"inventario-go/internal/model"
)

// PayloadType is the discriminator that separates inventory labels from
// arbitrary QR content a scanner might read.
const PayloadType = "inventario-auto"

// Payload is the structured data embedded in a generated code. One payload
// per CarDataRow; consumed exactly once when scanned.
type Payload struct {
	Tipo      string    `json:"tipo"`
	Serie     string    `json:"serie"`
	Marca     string    `json:"marca"`
	Color     string    `json:"color"`
	Ubicacion string    `json:"ubicacion"`
	Agencia   string    `json:"agencia"`
	Generado  time.Time `json:"generado"`
}

// Encode builds the payload for a validated row.
func Encode(row model.CarDataRow, location string) Payload {
	return Payload{
		Tipo:      PayloadType,
		Serie:     row.Serie,
		Marca:     row.Marca,
		Color:     row.Color,
		Ubicacion: row.Ubicacion,
		Agencia:   location,
		Generado:  time.Now(),
	}
}

// Marshal serializes the payload to the string embedded in the code.
func (p Payload) Marshal() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses a scanned payload string. It is the boundary that rejects
// malformed or foreign QR content before it reaches session logic.
func Decode(s string) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, apperr.Validationf("payload", "not a parseable label payload")
	}
	if p.Tipo != PayloadType {
		return nil, apperr.Validationf("payload", "unrecognized payload type %q", p.Tipo)
	}
	if p.Serie == "" || p.Marca == "" || p.Color == "" || p.Ubicacion == "" {
		return nil, apperr.Validationf("payload", "payload is missing required fields")
	}
	return &p, nil
}
