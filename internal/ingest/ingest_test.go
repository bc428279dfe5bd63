package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agri-assist/backend/internal/config"
	"github.com/agri-assist/backend/internal/index"
	"github.com/agri-assist/backend/internal/ingest"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

type recordingWriter struct {
	mu      sync.Mutex
	batches [][]index.Chunk
	err     error
}

func (w *recordingWriter) AddChunks(_ context.Context, chunks []index.Chunk) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, append([]index.Chunk(nil), chunks...))
	return nil
}

func (w *recordingWriter) all() []index.Chunk {
	var out []index.Chunk
	for _, b := range w.batches {
		out = append(out, b...)
	}
	return out
}

const samplePage = `<html><head><title>Drip Irrigation</title><style>p { color: red; }</style></head>
<body><script>var tracking = true;</script><p>Drip irrigation saves   water.</p><p>Mulch keeps soil moist.</p></body></html>`

// siteServer serves a page, a private page excluded by robots.txt and a
// missing page, counting hits to the public page.
func siteServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/robots.txt":
			fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
		case "/guide":
			atomic.AddInt32(hits, 1)
			fmt.Fprint(w, samplePage)
		case "/private":
			fmt.Fprint(w, "<p>secret</p>")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestSupported(t *testing.T) {
	tests := map[string]bool{
		"a.pdf":       true,
		"b.MD":        true,
		"c.html":      true,
		"d.txt":       true,
		"e.docx":      false,
		"noextension": false,
	}
	for path, want := range tests {
		assert.Equal(t, want, ingest.Supported(path), path)
	}
}

func TestMarkdownText(t *testing.T) {
	src := "# Soil Health\n\nKeep *organic* matter high.\n\n- compost\n- green manure\n\n```\npH 6.5\n```\n"

	got := ingest.MarkdownText([]byte(src))

	assert.Contains(t, got, "Soil Health")
	assert.Contains(t, got, "Keep organic matter high.")
	assert.Contains(t, got, "- compost")
	assert.Contains(t, got, "- green manure")
	assert.Contains(t, got, "pH 6.5")
	assert.NotContains(t, got, "#")
	assert.NotContains(t, got, "*")
}

func TestLoadFileHTML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "guide.html", samplePage)

	docs, err := ingest.LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t, path, docs[0].Source)
	assert.Equal(t, "Drip irrigation saves water. Mulch keeps soil moist.", docs[0].Text)
	assert.NotContains(t, docs[0].Text, "tracking")
	assert.NotContains(t, docs[0].Text, "color")
}

func TestLoadFileText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "Sow wheat in November.")

	docs, err := ingest.LoadFile(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Sow wheat in November.", docs[0].Text)

	empty := writeFile(t, dir, "empty.txt", "   \n")
	docs, err = ingest.LoadFile(context.Background(), empty)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ingest.LoadFile(context.Background(), filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	_, err = ingest.LoadFile(context.Background(), writeFile(t, dir, "sheet.docx", "x"))
	assert.Error(t, err)

	_, err = ingest.LoadFile(context.Background(), writeFile(t, dir, "broken.pdf", "not a pdf"))
	assert.Error(t, err)
}

func TestExtractPDFTextRejectsGarbage(t *testing.T) {
	_, err := ingest.ExtractPDFText(context.Background(), []byte("definitely not a pdf"))
	assert.Error(t, err)
}

func TestFetcherHonorsRobotsAndCaches(t *testing.T) {
	var hits int32
	srv := siteServer(t, &hits)
	cache, err := ingest.NewPageCache(t.TempDir())
	require.NoError(t, err)
	f := ingest.NewFetcher(5*time.Second, "test-agent", 0, true, cache, testLogger())

	page, err := f.Fetch(context.Background(), srv.URL+"/guide")
	require.NoError(t, err)
	assert.Equal(t, "Drip Irrigation", page.Title)
	assert.Equal(t, "Drip irrigation saves water. Mulch keeps soil moist.", page.Text)
	assert.Equal(t, srv.URL+"/guide", page.URL)

	again, err := f.Fetch(context.Background(), srv.URL+"/guide")
	require.NoError(t, err)
	assert.Equal(t, page, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	_, err = f.Fetch(context.Background(), srv.URL+"/private")
	assert.ErrorIs(t, err, ingest.ErrDisallowed)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "non-200")

	_, err = f.Fetch(context.Background(), "ftp://example.com/file")
	assert.Error(t, err)
}

func TestFetcherWithoutRobotsCheck(t *testing.T) {
	var hits int32
	srv := siteServer(t, &hits)
	f := ingest.NewFetcher(5*time.Second, "test-agent", 0, false, nil, testLogger())

	page, err := f.Fetch(context.Background(), srv.URL+"/private")
	require.NoError(t, err)
	assert.Equal(t, "secret", page.Text)
}

func TestPageCacheMiss(t *testing.T) {
	cache, err := ingest.NewPageCache(t.TempDir())
	require.NoError(t, err)

	page, err := cache.Get("https://example.com/never-saved")
	require.NoError(t, err)
	assert.Nil(t, page)

	saved := &ingest.Page{URL: "https://example.com/a", Title: "A", Text: "alpha"}
	require.NoError(t, cache.Save(saved))
	got, err := cache.Get("https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	other, err := cache.Get("https://example.com/b")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestPolitenessDelay(t *testing.T) {
	p := ingest.NewPoliteness(http.DefaultClient, "test-agent", 50*time.Millisecond, false, testLogger())

	start := time.Now()
	require.NoError(t, p.Wait(context.Background(), "example.com"))
	require.NoError(t, p.Wait(context.Background(), "example.com"))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	// Other hosts are not delayed.
	start = time.Now()
	require.NoError(t, p.Wait(context.Background(), "other.example.com"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Wait(ctx, "example.com"), context.Canceled)
}

func testIngestConfig() config.IngestConfig {
	return config.IngestConfig{
		ChunkSize:    80,
		ChunkOverlap: 10,
		Concurrency:  2,
		BatchSize:    3,
	}
}

func TestBuilderIndexesFilesAndURLs(t *testing.T) {
	var hits int32
	srv := siteServer(t, &hits)

	dir := t.TempDir()
	long := strings.Repeat("Rotate legumes with cereals to restore nitrogen. ", 10)
	txt := writeFile(t, dir, "rotation.txt", long)
	md := writeFile(t, dir, "sub/soil.md", "# Soil\n\nAdd compost every season.\n")
	writeFile(t, dir, "ignored.docx", "binary")

	w := &recordingWriter{}
	f := ingest.NewFetcher(5*time.Second, "test-agent", 0, true, nil, testLogger())
	b := ingest.NewBuilder(testIngestConfig(), w, f, testLogger())

	stats, err := b.Build(context.Background(), dir, []string{srv.URL + "/guide", srv.URL + "/private"})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Sources)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, []string{srv.URL + "/private"}, stats.Failures)

	chunks := w.all()
	assert.Equal(t, stats.Chunks, len(chunks))
	for _, batch := range w.batches {
		assert.LessOrEqual(t, len(batch), 3)
	}
	assert.Equal(t, stats.Batches, len(w.batches))

	bySource := map[string]int{}
	for _, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c.Text))
		bySource[c.Source]++
	}
	assert.Greater(t, bySource[txt], 1)
	assert.Equal(t, 1, bySource[md])
	assert.Equal(t, 1, bySource[srv.URL+"/guide"])
}

func TestBuilderWriteFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "Sow early.")

	w := &recordingWriter{err: errors.New("index unavailable")}
	b := ingest.NewBuilder(testIngestConfig(), w, nil, testLogger())

	_, err := b.Build(context.Background(), dir, nil)
	assert.ErrorContains(t, err, "index unavailable")
}

func TestBuilderMissingDir(t *testing.T) {
	b := ingest.NewBuilder(testIngestConfig(), &recordingWriter{}, nil, testLogger())

	_, err := b.Build(context.Background(), filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestSeeds(t *testing.T) {
	got := ingest.Seeds([]string{
		"https://Example.com/guide/#top",
		"  ",
		"https://example.com/guide",
		"HTTPS://example.com/",
		"not a url",
		"not a url",
	})

	assert.Equal(t, []string{
		"https://example.com/guide",
		"https://example.com/",
		"not a url",
	}, got)
}

func TestNormalizeURLErrors(t *testing.T) {
	for _, raw := range []string{"", "/relative/path", "https://"} {
		_, err := ingest.NormalizeURL(raw)
		assert.Error(t, err, raw)
	}
}

func TestFetcherContentTypes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/notes":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprint(w, "Mulch   keeps\nsoil moist.")
		case "/leaf.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("\x89PNG\r\n\x1a\n"))
		case "/guide.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			fmt.Fprint(w, "<html><body>not really a pdf</body></html>")
		case "/big":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<p>"+strings.Repeat("a", 256)+"</p>")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	f := ingest.NewFetcher(5*time.Second, "test-agent", 0, false, nil, testLogger())
	ctx := context.Background()

	page, err := f.Fetch(ctx, srv.URL+"/notes")
	require.NoError(t, err)
	assert.Equal(t, "Mulch keeps soil moist.", page.Text)

	_, err = f.Fetch(ctx, srv.URL+"/leaf.png")
	assert.ErrorIs(t, err, ingest.ErrUnsupportedContent)

	// PDF responses go through the PDF reader, never the HTML tokenizer.
	_, err = f.Fetch(ctx, srv.URL+"/guide.pdf")
	assert.Error(t, err)

	restore := ingest.SetMaxPageBytes(64)
	defer restore()
	_, err = f.Fetch(ctx, srv.URL+"/big")
	assert.ErrorContains(t, err, "exceeds 64 bytes")
}
