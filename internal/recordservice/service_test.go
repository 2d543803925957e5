package recordservice

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/starford/codestash/internal/apperr"
	"github.com/starford/codestash/internal/models"
	"github.com/starford/codestash/internal/payload"
	"github.com/starford/codestash/internal/pipeline"
	"github.com/starford/codestash/internal/render"
	"github.com/starford/codestash/internal/scanfile"
	"github.com/starford/codestash/internal/sse"
	"github.com/starford/codestash/internal/store"
	"github.com/starford/codestash/internal/symbology"
	"github.com/starford/codestash/internal/testutil"
)

type fakeRemote struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeRemote) Render(_ context.Context, data string, sym symbology.Symbology) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("remote:" + string(sym) + ":" + data), nil
}

type recorder struct {
	mu      sync.Mutex
	changes []sse.Change
}

func (r *recorder) PublishChange(c sse.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) kinds() []sse.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sse.Kind, len(r.changes))
	for i, c := range r.changes {
		out[i] = c.Kind
	}
	return out
}

func (r *recorder) all() []sse.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sse.Change(nil), r.changes...)
}

// interleavedStore holds the first two reads until both have happened, so
// two read-modify-write cycles start from the same version.
type interleavedStore struct {
	*store.DB
	mu        sync.Mutex
	reads     int
	both      chan struct{}
	conflicts int
}

func newInterleavedStore(db *store.DB) *interleavedStore {
	return &interleavedStore{DB: db, both: make(chan struct{})}
}

func (s *interleavedStore) Get(id string) (*models.Record, error) {
	rec, err := s.DB.Get(id)
	s.mu.Lock()
	s.reads++
	n := s.reads
	if n == 2 {
		close(s.both)
	}
	s.mu.Unlock()
	if n <= 2 {
		<-s.both
	}
	return rec, err
}

func (s *interleavedStore) Update(r *models.Record) error {
	err := s.DB.Update(r)
	if errors.Is(err, apperr.ErrConflict) {
		s.mu.Lock()
		s.conflicts++
		s.mu.Unlock()
	}
	return err
}

type conflictingStore struct{ *store.DB }

func (conflictingStore) Update(*models.Record) error { return apperr.ErrConflict }

func testService(t *testing.T, remote render.Renderer) (*Service, *store.DB, *recorder) {
	t.Helper()
	db := testutil.TestDB(t)
	rec := &recorder{}
	svc := NewService(db, Config{Local: render.NewLocal(), Remote: remote, Events: rec})
	t.Cleanup(svc.Close)
	return svc, db, rec
}

func TestCreate_LocalRenderIsCachedImmediately(t *testing.T) {
	svc, db, events := testService(t, &fakeRemote{})
	ctx := context.Background()

	d, err := svc.Create(ctx, CreateInput{Name: "Code 128", Payload: "13587936", Symbology: "code128"})
	require.NoError(t, err)
	require.Equal(t, pipeline.Cached, d.ImageState)
	require.Equal(t, symbology.Local, d.Capability)
	require.Equal(t, "barcode", d.Icon)
	require.Equal(t, "Code 128", d.SymbologyName)

	stored, err := db.Get(d.ID)
	require.NoError(t, err)
	require.True(t, stored.HasImage())
	require.Equal(t, []sse.Kind{sse.Created, sse.Rendered}, events.kinds())
	require.Equal(t, "cached", events.all()[0].ImageState)
}

func TestCreate_DefaultSymbology(t *testing.T) {
	svc, _, _ := testService(t, nil)
	d, err := svc.Create(context.Background(), CreateInput{Payload: "hello"})
	require.NoError(t, err)
	require.Equal(t, symbology.QR, d.Symbology)
	require.Equal(t, "Unnamed", d.DisplayName)
}

func TestCreate_RejectsUnknownSymbology(t *testing.T) {
	svc, _, _ := testService(t, nil)
	_, err := svc.Create(context.Background(), CreateInput{Payload: "x", Symbology: "bogus"})
	require.ErrorIs(t, err, apperr.ErrUnsupportedSymbology)
}

func TestCreate_RemoteRenderArrivesLater(t *testing.T) {
	remote := &fakeRemote{}
	svc, _, events := testService(t, remote)
	ctx := context.Background()

	d, err := svc.Create(ctx, CreateInput{Name: "EAN", Payload: "4006381333931", Symbology: "VNBarcodeSymbologyEAN13"})
	require.NoError(t, err)
	require.Equal(t, pipeline.Pending, d.ImageState)

	svc.Wait()
	img, err := svc.Image(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, pipeline.Cached, img.State)
	require.Equal(t, "remote:EAN13:4006381333931", string(img.PNG))
	require.Equal(t, []sse.Kind{sse.Created, sse.Rendered}, events.kinds())
	require.Equal(t, "pending", events.all()[0].ImageState)
	require.Equal(t, 1, remote.calls)
}

func TestImage_UnsupportedSymbology(t *testing.T) {
	remote := &fakeRemote{}
	svc, _, _ := testService(t, remote)
	ctx := context.Background()

	d, err := svc.Create(ctx, CreateInput{Payload: "x", Symbology: "Codabar"})
	require.NoError(t, err)
	require.Equal(t, pipeline.Unsupported, d.ImageState)

	img, err := svc.Image(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, pipeline.Unsupported, img.State)
	require.Empty(t, img.PNG)
	require.Zero(t, remote.calls)
}

func TestImage_RemoteFailureIsNotRetried(t *testing.T) {
	remote := &fakeRemote{err: apperr.ErrTransport}
	svc, _, events := testService(t, remote)
	ctx := context.Background()

	d, err := svc.Create(ctx, CreateInput{Payload: "x", Symbology: "PDF417"})
	require.NoError(t, err)
	svc.Wait()

	img, err := svc.Image(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, pipeline.Unsupported, img.State)
	require.Equal(t, 1, remote.calls)
	require.Contains(t, events.kinds(), sse.Unsupported)

	// A payload change gets a fresh attempt.
	remote.mu.Lock()
	remote.err = nil
	remote.mu.Unlock()
	next := "y"
	_, err = svc.Update(ctx, d.ID, UpdateInput{Payload: &next})
	require.NoError(t, err)
	svc.Wait()

	img, err = svc.Image(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, pipeline.Cached, img.State)
	require.Equal(t, 2, remote.calls)
}

func TestUpdate_PayloadChangeRerenders(t *testing.T) {
	svc, _, _ := testService(t, nil)
	ctx := context.Background()

	d, err := svc.Create(ctx, CreateInput{Payload: "one", Symbology: "QR"})
	require.NoError(t, err)
	first, err := svc.Image(ctx, d.ID)
	require.NoError(t, err)

	next := "two"
	u, err := svc.Update(ctx, d.ID, UpdateInput{Payload: &next})
	require.NoError(t, err)
	require.Equal(t, int64(2), u.Revision)
	require.Equal(t, pipeline.Cached, u.ImageState)

	second, err := svc.Image(ctx, d.ID)
	require.NoError(t, err)
	require.NotEqual(t, first.PNG, second.PNG)
}

func TestUpdate_NameOnlyKeepsRevision(t *testing.T) {
	svc, _, _ := testService(t, nil)
	ctx := context.Background()

	d, _ := svc.Create(ctx, CreateInput{Payload: "one", Symbology: "QR"})
	name := "Renamed"
	u, err := svc.Update(ctx, d.ID, UpdateInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, int64(1), u.Revision)
	require.Equal(t, "Renamed", u.DisplayName)
	require.Equal(t, pipeline.Cached, u.ImageState)
}

func TestToggleFavoriteAndList(t *testing.T) {
	svc, _, _ := testService(t, nil)
	ctx := context.Background()

	a, _ := svc.Create(ctx, CreateInput{Name: "a", Payload: "1"})
	_, _ = svc.Create(ctx, CreateInput{Name: "b", Payload: "2"})

	fav, err := svc.ToggleFavorite(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, fav.Favorite)

	items, total, err := svc.List(ctx, ListInput{Favorites: true})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, a.ID, items[0].ID)

	unfav, err := svc.ToggleFavorite(ctx, a.ID)
	require.NoError(t, err)
	require.False(t, unfav.Favorite)

	_, _, err = svc.List(ctx, ListInput{Symbology: "nope"})
	require.ErrorIs(t, err, apperr.ErrUnsupportedSymbology)
}

func TestDelete(t *testing.T) {
	svc, _, events := testService(t, nil)
	ctx := context.Background()

	d, _ := svc.Create(ctx, CreateInput{Payload: "1"})
	require.NoError(t, svc.Delete(ctx, d.ID))
	_, err := svc.Get(ctx, d.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, d.ID), apperr.ErrNotFound)
	require.Contains(t, events.kinds(), sse.Deleted)
}

func TestScan(t *testing.T) {
	svc, _, _ := testService(t, nil)
	d, err := svc.Scan(context.Background(), "https://example.com", "VNBarcodeSymbologyQR")
	require.NoError(t, err)
	require.Equal(t, "Scanned Code", d.Name)
	require.Equal(t, payload.WebLink, d.Content.Kind)
	require.Equal(t, "link", d.Icon)

	_, err = svc.Scan(context.Background(), "x", "VNBarcodeSymbologyNope")
	require.ErrorIs(t, err, apperr.ErrUnsupportedSymbology)
}

func TestSeed(t *testing.T) {
	svc, _, _ := testService(t, &fakeRemote{})
	ctx := context.Background()

	seeded, err := svc.Seed(ctx)
	require.NoError(t, err)
	require.Len(t, seeded, 6)
	svc.Wait()

	_, total, err := svc.List(ctx, ListInput{})
	require.NoError(t, err)
	require.Equal(t, 6, total)

	var wifi *RecordDetail
	for i := range seeded {
		if seeded[i].Name == "WIFI" {
			wifi = &seeded[i]
		}
	}
	require.NotNil(t, wifi)
	require.Equal(t, payload.WifiConfig, wifi.Content.Kind)
	require.Equal(t, "some wifi name", wifi.Content.Wifi.SSID)

	for _, d := range seeded {
		if d.Symbology == symbology.Code39Checksum {
			require.Equal(t, pipeline.Unsupported, d.ImageState)
		}
	}
}

func TestRender_Stateless(t *testing.T) {
	svc, _, _ := testService(t, &fakeRemote{})
	ctx := context.Background()

	png, err := svc.Render(ctx, "13587936", "Code39")
	require.NoError(t, err)
	require.Equal(t, "remote:Code39:13587936", string(png))

	_, err = svc.Render(ctx, "x", "MicroQR")
	require.ErrorIs(t, err, apperr.ErrUnsupportedSymbology)

	_, total, _ := svc.List(ctx, ListInput{})
	require.Zero(t, total)
}

func TestIngestScan(t *testing.T) {
	svc, _, _ := testService(t, nil)
	ctx := context.Background()

	require.NoError(t, svc.IngestScan(ctx, scanfile.Scan{Payload: "abc", Symbology: "VNBarcodeSymbologyQR"}))
	require.NoError(t, svc.IngestScan(ctx, scanfile.Scan{Payload: "def", Symbology: "Code128", Name: "Gym", Favorite: true}))
	require.ErrorIs(t, svc.IngestScan(ctx, scanfile.Scan{Payload: "x", Symbology: "nope"}), apperr.ErrUnsupportedSymbology)

	items, total, err := svc.List(ctx, ListInput{})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	names := []string{items[0].DisplayName, items[1].DisplayName}
	require.ElementsMatch(t, []string{"Scanned Code", "Gym"}, names)

	favs, _, _ := svc.List(ctx, ListInput{Favorites: true})
	require.Len(t, favs, 1)
}

func TestImage_RemoteFailureSurvivesRestart(t *testing.T) {
	db := testutil.TestDB(t)
	ctx := context.Background()

	failing := NewService(db, Config{Local: render.NewLocal(), Remote: &fakeRemote{err: apperr.ErrTransport}})
	d, err := failing.Create(ctx, CreateInput{Payload: "x", Symbology: "PDF417"})
	require.NoError(t, err)
	failing.Wait()
	failing.Close()

	stored, err := db.Get(d.ID)
	require.NoError(t, err)
	require.Equal(t, d.Revision, stored.FailedRevision)

	remote := &fakeRemote{}
	svc := NewService(db, Config{Local: render.NewLocal(), Remote: remote})
	t.Cleanup(svc.Close)

	img, err := svc.Image(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, pipeline.Unsupported, img.State)
	got, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, pipeline.Unsupported, got.ImageState)
	require.Zero(t, remote.calls)
}

func TestUpdate_ConcurrentPayloadChangesKeepImageConsistent(t *testing.T) {
	db := testutil.TestDB(t)
	racing := newInterleavedStore(db)
	svc := NewService(racing, Config{Local: render.NewLocal()})
	t.Cleanup(svc.Close)
	ctx := context.Background()

	rec := models.NewRecord("n", "start", symbology.QR)
	require.NoError(t, db.Insert(rec))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, p := range []string{"first", "second"} {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			_, errs[i] = svc.Update(ctx, rec.ID, UpdateInput{Payload: &p})
		}(i, p)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, 1, racing.conflicts)

	stored, err := db.Get(rec.ID)
	require.NoError(t, err)
	require.Contains(t, []string{"first", "second"}, stored.Payload)
	require.Equal(t, int64(3), stored.Revision, "each payload change gets its own revision")

	img, err := svc.Image(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, stored.Revision, img.Revision)
	want, err := svc.Render(ctx, stored.Payload, "QR")
	require.NoError(t, err)
	require.Equal(t, want, img.PNG, "cached image must belong to the stored payload")
}

func TestToggleFavorite_DoesNotUndoConcurrentUpdate(t *testing.T) {
	db := testutil.TestDB(t)
	racing := newInterleavedStore(db)
	svc := NewService(racing, Config{Local: render.NewLocal()})
	t.Cleanup(svc.Close)
	ctx := context.Background()

	rec := models.NewRecord("n", "old", symbology.QR)
	require.NoError(t, db.Insert(rec))

	var wg sync.WaitGroup
	var toggleErr, updateErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, toggleErr = svc.ToggleFavorite(ctx, rec.ID)
	}()
	go func() {
		defer wg.Done()
		next := "new"
		_, updateErr = svc.Update(ctx, rec.ID, UpdateInput{Payload: &next})
	}()
	wg.Wait()
	require.NoError(t, toggleErr)
	require.NoError(t, updateErr)

	stored, err := db.Get(rec.ID)
	require.NoError(t, err)
	require.True(t, stored.Favorite)
	require.Equal(t, "new", stored.Payload)
	require.Equal(t, int64(2), stored.Revision)
}

func TestUpdate_PersistentConflictIsReported(t *testing.T) {
	db := testutil.TestDB(t)
	svc := NewService(conflictingStore{db}, Config{Local: render.NewLocal()})
	t.Cleanup(svc.Close)

	rec := models.NewRecord("n", "a", symbology.QR)
	require.NoError(t, db.Insert(rec))

	name := "b"
	_, err := svc.Update(context.Background(), rec.ID, UpdateInput{Name: &name})
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestList_ContentFilter(t *testing.T) {
	svc, _, _ := testService(t, nil)
	ctx := context.Background()

	link, _ := svc.Create(ctx, CreateInput{Payload: "https://example.com"})
	_, _ = svc.Create(ctx, CreateInput{Payload: "WIFI:S:n;T:WPA;P:p;;"})
	_, _ = svc.Create(ctx, CreateInput{Payload: "plain"})

	items, total, err := svc.List(ctx, ListInput{Content: "web_link"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, link.ID, items[0].ID)

	_, total, err = svc.List(ctx, ListInput{Content: "wifi"})
	require.NoError(t, err)
	require.Equal(t, 1, total)

	_, _, err = svc.List(ctx, ListInput{Content: "url"})
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
}
