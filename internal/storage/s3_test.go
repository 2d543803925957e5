package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
)

// fakeS3 serves the handful of path-style S3 calls the provider makes.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(p, "/")
	if bucket != f.bucket {
		http.Error(w, "no such bucket", http.StatusNotFound)
		return
	}

	switch {
	case r.Method == http.MethodGet && key == "" && r.URL.Query().Get("list-type") == "2":
		f.list(w, r.URL.Query().Get("prefix"))
	case r.Method == http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		_, _ = w.Write(data)
	case r.Method == http.MethodPut && r.Header.Get("X-Amz-Copy-Source") != "":
		src, _ := url.PathUnescape(r.Header.Get("X-Amz-Copy-Source"))
		src = strings.TrimPrefix(strings.TrimPrefix(src, "/"), f.bucket+"/")
		data, ok := f.objects[src]
		if !ok {
			http.Error(w, "missing source", http.StatusNotFound)
			return
		}
		f.objects[key] = append([]byte(nil), data...)
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><CopyObjectResult><ETag>"copied"</ETag><LastModified>2024-01-01T00:00:00.000Z</LastModified></CopyObjectResult>`)
	case r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		w.Header().Set("ETag", `"etag"`)
	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "unsupported", http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) list(w http.ResponseWriter, prefix string) {
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&b, `<Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>`, f.bucket, prefix, len(keys))
	for _, k := range keys {
		fmt.Fprintf(&b, `<Contents><Key>%s</Key><LastModified>2024-01-01T00:00:00.000Z</LastModified><ETag>"e"</ETag><Size>%d</Size><StorageClass>STANDARD</StorageClass></Contents>`, k, len(f.objects[k]))
	}
	b.WriteString(`</ListBucketResult>`)
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(b.String()))
}

func testS3(t *testing.T) (*S3, *fakeS3) {
	t.Helper()
	fake := &fakeS3{bucket: "codes", objects: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3(context.Background(), S3Options{
		Bucket:          "codes",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
		Prefix:          "export",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	return s, fake
}

func TestS3_WriteReadDelete(t *testing.T) {
	s, fake := testS3(t)

	if err := s.Write("records/a.png", []byte("png")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, ok := fake.objects["export/records/a.png"]; !ok {
		t.Fatalf("object not stored under prefix: %v", fake.objects)
	}

	got, err := s.Read("records/a.png")
	if err != nil || string(got) != "png" {
		t.Fatalf("Read = %q, %v", got, err)
	}

	if err := s.Delete("records/a.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("records/a.png"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read after delete: err = %v, want os.ErrNotExist", err)
	}
}

func TestS3_ListAndMove(t *testing.T) {
	s, _ := testS3(t)
	_ = s.Write("inbox/one.json", []byte("{}"))
	_ = s.Write("inbox/two.yaml", []byte("a: b"))
	_ = s.Write("other/x.png", []byte("x"))

	items, err := s.List("inbox")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 || items[0].Path != "inbox/one.json" || items[1].Size != 4 {
		t.Fatalf("items = %+v", items)
	}

	if err := s.Move("inbox/one.json", "inbox/rejected/one.json"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if _, err := s.Read("inbox/one.json"); err == nil {
		t.Error("source still exists after move")
	}
	if got, err := s.Read("inbox/rejected/one.json"); err != nil || string(got) != "{}" {
		t.Errorf("moved object = %q, %v", got, err)
	}
}

func TestS3_KeyRejectsEmpty(t *testing.T) {
	s, _ := testS3(t)
	if err := s.Write("", []byte("x")); err == nil {
		t.Error("expected error for empty key")
	}
	if k, _ := s.key("../../x.png"); k != "export/x.png" {
		t.Errorf("key = %q", k)
	}
}

func TestNewS3_RequiresBucket(t *testing.T) {
	if _, err := NewS3(context.Background(), S3Options{}); err == nil {
		t.Error("expected error without bucket")
	}
}
