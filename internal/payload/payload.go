// Package payload classifies decoded code contents independently of the
// symbology that carried them.
package payload

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/codestash/internal/apperr"
)

// Kind is the semantic class of a payload.
type Kind int

const (
	PlainText Kind = iota
	WebLink
	WifiConfig
)

func (k Kind) String() string {
	switch k {
	case WebLink:
		return "web_link"
	case WifiConfig:
		return "wifi"
	default:
		return "plain_text"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{PlainText, WebLink, WifiConfig} {
		if s == k.String() {
			return k, nil
		}
	}
	return PlainText, fmt.Errorf("payload: unknown content kind %q: %w", s, apperr.ErrInvalidArgument)
}

// MarshalText renders the kind by name in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// WebLinkPrefix is the literal prefix that marks a payload as a link.
const WebLinkPrefix = "https:"

var wifiRe = regexp.MustCompile(`^WIFI:S:(.*?);T:(WEP|WPA|);P:(.*?)(?:;H:(true|false))?;;$`)

// Content is the classification result. Wifi is set only for WifiConfig.
type Content struct {
	Kind Kind   `json:"kind"`
	Wifi *Wifi  `json:"wifi,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Icon is the display affordance for the content, or "" for plain text.
func (c Content) Icon() string {
	switch c.Kind {
	case WebLink:
		return "link"
	case WifiConfig:
		return "wifi"
	default:
		return ""
	}
}

// Classify inspects a payload. The Wi-Fi pattern is checked first; the link
// prefix only applies when it does not match.
func Classify(s string) Content {
	if w, ok := ParseWifi(s); ok {
		return Content{Kind: WifiConfig, Wifi: &w}
	}
	if strings.HasPrefix(s, WebLinkPrefix) {
		return Content{Kind: WebLink, URL: s}
	}
	return Content{Kind: PlainText}
}

// ParseWifi matches the whole payload against the Wi-Fi configuration format.
// Partial matches are rejected.
func ParseWifi(s string) (Wifi, bool) {
	m := wifiRe.FindStringSubmatch(s)
	if m == nil {
		return Wifi{}, false
	}
	w := Wifi{
		SSID:     m[1],
		Security: Security(m[2]),
		Password: m[3],
	}
	if m[4] != "" {
		hidden := m[4] == "true"
		w.Hidden = &hidden
	}
	return w, true
}
