// Package symbology enumerates the barcode and QR symbologies Code Stash knows
// about and classifies them by rendering capability and display category.
package symbology

import (
	"fmt"
	"strings"

	"github.com/starford/codestash/internal/apperr"
)

// Symbology is a closed set of barcode encodings. The string value is the
// internal PascalCase identifier.
type Symbology string

const (
	Aztec                   Symbology = "Aztec"
	Codabar                 Symbology = "Codabar"
	Code128                 Symbology = "Code128"
	Code39                  Symbology = "Code39"
	Code39Checksum          Symbology = "Code39Checksum"
	Code39FullASCII         Symbology = "Code39FullASCII"
	Code39FullASCIIChecksum Symbology = "Code39FullASCIIChecksum"
	Code93                  Symbology = "Code93"
	Code93i                 Symbology = "Code93i"
	DataMatrix              Symbology = "DataMatrix"
	EAN13                   Symbology = "EAN13"
	EAN8                    Symbology = "EAN8"
	GS1DataBar              Symbology = "GS1DataBar"
	GS1DataBarExpanded      Symbology = "GS1DataBarExpanded"
	GS1DataBarLimited       Symbology = "GS1DataBarLimited"
	I2of5                   Symbology = "I2of5"
	I2of5Checksum           Symbology = "I2of5Checksum"
	ITF14                   Symbology = "ITF14"
	MicroPDF417             Symbology = "MicroPDF417"
	MicroQR                 Symbology = "MicroQR"
	MSIPlessey              Symbology = "MSIPlessey"
	PDF417                  Symbology = "PDF417"
	QR                      Symbology = "QR"
	UPCE                    Symbology = "UPCE"
)

// ScannerPrefix is prepended by the camera scanner to every identifier it
// reports (e.g. "VNBarcodeSymbologyQR").
const ScannerPrefix = "VNBarcodeSymbology"

// Default is the symbology given to new records unless configured otherwise.
const Default = QR

var all = []Symbology{
	Aztec,
	Codabar,
	Code128,
	Code39,
	Code39Checksum,
	Code39FullASCII,
	Code39FullASCIIChecksum,
	Code93,
	Code93i,
	DataMatrix,
	EAN13,
	EAN8,
	GS1DataBar,
	GS1DataBarExpanded,
	GS1DataBarLimited,
	I2of5,
	I2of5Checksum,
	ITF14,
	MicroPDF417,
	MicroQR,
	MSIPlessey,
	PDF417,
	QR,
	UPCE,
}

// byKey maps the lowercased identifier to its variant.
var byKey = func() map[string]Symbology {
	m := make(map[string]Symbology, len(all))
	for _, s := range all {
		m[strings.ToLower(string(s))] = s
	}
	return m
}()

// All returns every known symbology in canonical order.
func All() []Symbology {
	out := make([]Symbology, len(all))
	copy(out, all)
	return out
}

// Parse maps an identifier to its Symbology. Both the bare identifier and the
// scanner-prefixed form are accepted, case-insensitively. Unknown identifiers
// return apperr.ErrUnsupportedSymbology.
func Parse(identifier string) (Symbology, error) {
	key := strings.TrimSpace(identifier)
	if len(key) >= len(ScannerPrefix) && strings.EqualFold(key[:len(ScannerPrefix)], ScannerPrefix) {
		key = key[len(ScannerPrefix):]
	}
	if s, ok := byKey[strings.ToLower(key)]; ok {
		return s, nil
	}
	return "", fmt.Errorf("symbology %q: %w", identifier, apperr.ErrUnsupportedSymbology)
}

// Valid reports whether s is a member of the known set.
func (s Symbology) Valid() bool {
	v, ok := byKey[strings.ToLower(string(s))]
	return ok && v == s
}

// String returns the internal identifier.
func (s Symbology) String() string { return string(s) }

// DisplayName is the spaced, human-readable form of the identifier.
func (s Symbology) DisplayName() string { return HumanReadableName(string(s)) }
