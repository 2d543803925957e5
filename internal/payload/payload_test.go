package payload

import (
	"errors"
	"testing"

	"github.com/starford/codestash/internal/apperr"
)

func TestClassify_WifiRoundTrip(t *testing.T) {
	c := Classify("WIFI:S:MyNet;T:WPA;P:secret;;")
	if c.Kind != WifiConfig {
		t.Fatalf("kind = %s, want wifi", c.Kind)
	}
	if c.Wifi.SSID != "MyNet" || c.Wifi.Security != SecurityWPA || c.Wifi.Password != "secret" {
		t.Errorf("wifi = %+v", *c.Wifi)
	}
	if c.Wifi.Hidden != nil {
		t.Errorf("hidden should be nil, got %v", *c.Wifi.Hidden)
	}
	if got := c.Wifi.Payload(); got != "WIFI:S:MyNet;T:WPA;P:secret;;" {
		t.Errorf("Payload() = %q", got)
	}
}

func TestClassify_WifiWithHiddenFlag(t *testing.T) {
	c := Classify("WIFI:S:some wifi name;T:WPA;P:and a password;H:false;;")
	if c.Kind != WifiConfig {
		t.Fatalf("kind = %s, want wifi", c.Kind)
	}
	if c.Wifi.SSID != "some wifi name" || c.Wifi.Password != "and a password" {
		t.Errorf("wifi = %+v", *c.Wifi)
	}
	if c.Wifi.Hidden == nil || *c.Wifi.Hidden {
		t.Errorf("hidden = %v, want false", c.Wifi.Hidden)
	}
	if c.Icon() != "wifi" {
		t.Errorf("icon = %q", c.Icon())
	}
}

func TestClassify_WifiSecurityVariants(t *testing.T) {
	cases := map[string]Security{
		"WIFI:S:a;T:WEP;P:k;;": SecurityWEP,
		"WIFI:S:a;T:;P:;;":     SecurityNone,
	}
	for in, want := range cases {
		w, ok := ParseWifi(in)
		if !ok {
			t.Fatalf("ParseWifi(%q) did not match", in)
		}
		if w.Security != want {
			t.Errorf("ParseWifi(%q).Security = %q, want %q", in, w.Security, want)
		}
	}
	w, _ := ParseWifi("WIFI:S:a;T:WEP;P:k;;")
	if !w.IsWEP() {
		t.Error("IsWEP = false")
	}
}

func TestClassify_MalformedWifiIsPlainText(t *testing.T) {
	for _, in := range []string{
		"WIFI:S:net;T:WPA2;P:x;;",        // unknown security
		"WIFI:S:net;T:WPA;P:x;",          // missing terminator
		"xWIFI:S:net;T:WPA;P:x;;",        // not anchored at start
		"WIFI:S:net;T:WPA;P:x;;trailing", // not anchored at end
		"WIFI:T:WPA;S:net;P:x;;",         // fields out of order
	} {
		if c := Classify(in); c.Kind != PlainText {
			t.Errorf("Classify(%q) = %s, want plain_text", in, c.Kind)
		}
	}
}

func TestClassify_WebLink(t *testing.T) {
	c := Classify("https://google.com")
	if c.Kind != WebLink {
		t.Fatalf("kind = %s, want web_link", c.Kind)
	}
	if c.URL != "https://google.com" || c.Icon() != "link" {
		t.Errorf("content = %+v", c)
	}
}

func TestClassify_PlainText(t *testing.T) {
	for _, in := range []string{"13587936", "http://example.com", "", "Hello World"} {
		if c := Classify(in); c.Kind != PlainText {
			t.Errorf("Classify(%q) = %s, want plain_text", in, c.Kind)
		}
	}
}

func TestWifiPayload_HiddenRoundTrip(t *testing.T) {
	hidden := true
	w := Wifi{SSID: "Office", Security: SecurityWPA, Password: "p@ss", Hidden: &hidden}
	got, ok := ParseWifi(w.Payload())
	if !ok {
		t.Fatalf("ParseWifi(%q) did not match", w.Payload())
	}
	if got.SSID != w.SSID || got.Password != w.Password || got.Hidden == nil || !*got.Hidden {
		t.Errorf("round trip = %+v", got)
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{PlainText, WebLink, WifiConfig} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("link"); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Errorf("unknown kind: err = %v", err)
	}
}
