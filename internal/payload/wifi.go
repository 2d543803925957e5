package payload

import (
	"strconv"
	"strings"
)

// Security is the network authentication type of a Wi-Fi payload.
type Security string

const (
	SecurityNone Security = ""
	SecurityWEP  Security = "WEP"
	SecurityWPA  Security = "WPA"
)

// Wifi is a parsed network configuration. Hidden is nil when the payload
// omits the H: field.
type Wifi struct {
	SSID     string   `json:"ssid"`
	Security Security `json:"security"`
	Password string   `json:"password"`
	Hidden   *bool    `json:"hidden,omitempty"`
}

// IsWEP reports whether joining the network needs a WEP key.
func (w Wifi) IsWEP() bool { return w.Security == SecurityWEP }

// Payload encodes w in the format ParseWifi accepts.
func (w Wifi) Payload() string {
	var b strings.Builder
	b.WriteString("WIFI:S:")
	b.WriteString(w.SSID)
	b.WriteString(";T:")
	b.WriteString(string(w.Security))
	b.WriteString(";P:")
	b.WriteString(w.Password)
	if w.Hidden != nil {
		b.WriteString(";H:")
		b.WriteString(strconv.FormatBool(*w.Hidden))
	}
	b.WriteString(";;")
	return b.String()
}
