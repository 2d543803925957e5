package checksum

import "testing"

func TestSum(t *testing.T) {
	// SHA-256 of the empty input.
	const empty = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := Sum(nil); got != empty {
		t.Errorf("Sum(nil) = %s", got)
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("different inputs share a digest")
	}
}

func TestMatchesETag(t *testing.T) {
	etag := ETag([]byte("png"))
	cases := map[string]bool{
		etag:                  true,
		"W/" + etag:           true,
		`"other", ` + etag:    true,
		"*":                   true,
		`"other"`:             false,
		"":                    false,
		etag[1 : len(etag)-1]: false,
	}
	for header, want := range cases {
		if got := MatchesETag(header, etag); got != want {
			t.Errorf("MatchesETag(%q) = %v, want %v", header, got, want)
		}
	}
}
