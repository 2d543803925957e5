package symbology

// Capability says which renderer can produce an image for a symbology.
type Capability int

const (
	Unsupported Capability = iota
	Local
	Remote
)

func (c Capability) String() string {
	switch c {
	case Local:
		return "local"
	case Remote:
		return "remote"
	default:
		return "unsupported"
	}
}

// MarshalText renders the capability by name in JSON payloads.
func (c Capability) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Category drives iconography only.
type Category int

const (
	Unknown Category = iota
	QRLike
	LinearLike
)

func (c Category) String() string {
	switch c {
	case QRLike:
		return "qr"
	case LinearLike:
		return "linear"
	default:
		return "unknown"
	}
}

// MarshalText renders the category by name in JSON payloads.
func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Icon is the system image name used for the category.
func (c Category) Icon() string {
	switch c {
	case QRLike:
		return "qrcode"
	case LinearLike:
		return "barcode"
	default:
		return "questionmark"
	}
}

var (
	localSet = map[Symbology]struct{}{
		Code128: {},
		QR:      {},
	}

	// remoteNames is both the remote allow-list and the vocabulary table.
	remoteNames = map[Symbology]string{
		QR:         "qr",
		DataMatrix: "datamatrix",
		UPCE:       "upce",
		Code39:     "code39",
		EAN8:       "ean8",
		EAN13:      "ean13",
		Code93:     "code93",
		Code128:    "code128",
		I2of5:      "interleaved2of5",
		PDF417:     "pdf417",
		Aztec:      "azteccode",
	}

	qrLike = map[Symbology]struct{}{
		Aztec:      {},
		DataMatrix: {},
		QR:         {},
	}

	linearLike = map[Symbology]struct{}{
		Code128: {},
		Code39:  {},
		Code93:  {},
		EAN13:   {},
		EAN8:    {},
		I2of5:   {},
		PDF417:  {},
		UPCE:    {},
	}
)

// Classify returns the best renderer for s. Local wins over Remote.
func Classify(s Symbology) Capability {
	if SupportsLocal(s) {
		return Local
	}
	if SupportsRemote(s) {
		return Remote
	}
	return Unsupported
}

// SupportsLocal reports whether the on-device renderer handles s.
func SupportsLocal(s Symbology) bool {
	_, ok := localSet[s]
	return ok
}

// SupportsRemote reports whether s is on the remote allow-list.
func SupportsRemote(s Symbology) bool {
	_, ok := remoteNames[s]
	return ok
}

// Renderable reports whether any renderer can produce an image for s.
func Renderable(s Symbology) bool {
	return Classify(s) != Unsupported
}

// RemoteName maps s to the remote service's symbology vocabulary.
func RemoteName(s Symbology) (string, bool) {
	name, ok := remoteNames[s]
	return name, ok
}

// DisplayCategory groups s for iconography.
func DisplayCategory(s Symbology) Category {
	if _, ok := qrLike[s]; ok {
		return QRLike
	}
	if _, ok := linearLike[s]; ok {
		return LinearLike
	}
	return Unknown
}

// Info is a flattened view of one registry entry.
type Info struct {
	ID         Symbology  `json:"id"`
	Name       string     `json:"name"`
	Capability Capability `json:"capability"`
	Category   Category   `json:"category"`
	RemoteName string     `json:"remote_name,omitempty"`
	Renderable bool       `json:"renderable"`
}

// Describe returns the registry entry for s.
func Describe(s Symbology) Info {
	remote, _ := RemoteName(s)
	return Info{
		ID:         s,
		Name:       s.DisplayName(),
		Capability: Classify(s),
		Category:   DisplayCategory(s),
		RemoteName: remote,
		Renderable: Renderable(s),
	}
}

// Catalog describes every known symbology in canonical order.
func Catalog() []Info {
	out := make([]Info, 0, len(all))
	for _, s := range all {
		out = append(out, Describe(s))
	}
	return out
}
