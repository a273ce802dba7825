package services

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/kindle-vocab/internal/dictionary"
	"github.com/mrlokans/kindle-vocab/internal/entities"
	"github.com/mrlokans/kindle-vocab/internal/exporters"
	"github.com/mrlokans/kindle-vocab/internal/kindle"
)

// fakeResolver answers from a fixed table; unknown words resolve to the
// not-found fallback the real resolver produces.
type fakeResolver struct {
	mu      sync.Mutex
	entries map[string]entities.DefinitionResult
	onCall  func(word string)
	calls   []string
}

func (f *fakeResolver) Resolve(_ context.Context, word string) dictionary.Resolution {
	f.mu.Lock()
	f.calls = append(f.calls, word)
	hook := f.onCall
	f.mu.Unlock()

	if hook != nil {
		hook(word)
	}
	if def, ok := f.entries[word]; ok {
		def.SourceWord = word
		return dictionary.Resolution{DefinitionResult: def, Outcome: dictionary.OutcomeFound}
	}
	return dictionary.Resolution{
		DefinitionResult: entities.DefinitionResult{Headword: word, SourceWord: word},
		Outcome:          dictionary.OutcomeNotFound,
		Reason:           dictionary.ReasonRetriesExhausted,
	}
}

type fakeRecorder struct {
	started  []entities.ExportRun
	finished []entities.ExportRun
	err      error
}

func (f *fakeRecorder) StartRun(run *entities.ExportRun) error {
	run.ID = uint(len(f.started) + 1)
	f.started = append(f.started, *run)
	return f.err
}

func (f *fakeRecorder) FinishRun(run *entities.ExportRun) error {
	f.finished = append(f.finished, *run)
	return f.err
}

func createVocabDB(t *testing.T, dir string) string {
	t.Helper()

	dbPath := filepath.Join(dir, "vocab.db")
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE WORDS (id TEXT PRIMARY KEY NOT NULL, word TEXT, stem TEXT, lang TEXT);
		CREATE TABLE LOOKUPS (id TEXT PRIMARY KEY NOT NULL, word_key TEXT, book_key TEXT, usage TEXT, timestamp INTEGER DEFAULT 0);
	`)
	require.NoError(t, err)
	return dbPath
}

func insertLookup(t *testing.T, dbPath, id, word, usage string, ts int64) {
	t.Helper()

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT OR IGNORE INTO WORDS (id, word, stem, lang) VALUES (?, ?, ?, 'en')`, "en:"+word, word, word)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO LOOKUPS (id, word_key, usage, timestamp) VALUES (?, ?, ?, ?)`, id, "en:"+word, usage, ts)
	require.NoError(t, err)
}

type exportFixture struct {
	dir     string
	request ExportRequest
}

// newExportFixture seeds the scenario used across these tests: a watermark
// of 1000 and lookups at 999, 1001 and 1002.
func newExportFixture(t *testing.T) exportFixture {
	t.Helper()

	dir := t.TempDir()
	dbPath := createVocabDB(t, dir)
	insertLookup(t, dbPath, "l1", "baz", "An old baz.", 999)
	insertLookup(t, dbPath, "l2", "foo", "The foo ran.", 1001)
	insertLookup(t, dbPath, "l3", "bar", "A bar stood.", 1002)

	wmPath := filepath.Join(dir, "last_timestamp.txt")
	require.NoError(t, os.WriteFile(wmPath, []byte("1000\n"), 0o644))

	return exportFixture{
		dir: dir,
		request: ExportRequest{
			DatabasePath:  dbPath,
			WatermarkPath: wmPath,
			OutputPath:    filepath.Join(dir, "import.csv"),
		},
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func fooResolver() *fakeResolver {
	return &fakeResolver{entries: map[string]entities.DefinitionResult{
		"foo": {Headword: "foo", Pronunciation: "ˈfü", Definition: "a thing"},
	}}
}

func TestExportService_IncrementalExport(t *testing.T) {
	fx := newExportFixture(t)
	svc := NewExportService(fooResolver(), ExportOptions{Workers: 4}, nil)

	result, err := svc.Export(context.Background(), fx.request)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), result.WatermarkBefore)
	assert.Equal(t, int64(1002), result.WatermarkAfter)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 2, result.Written)
	assert.Equal(t, 1, result.NotFound)
	assert.Equal(t, PhaseWatermarkAdvanced, result.Phase)

	assert.Equal(t,
		"foo,ˈfü,The <b>foo</b> ran.,a thing\n"+
			"bar,,A <b>bar</b> stood.,\n",
		readFile(t, fx.request.OutputPath))
	assert.Equal(t, "1000\n1002\n", readFile(t, fx.request.WatermarkPath))
}

func TestExportService_OutputIsWorldReadable(t *testing.T) {
	fx := newExportFixture(t)

	_, err := NewExportService(fooResolver(), ExportOptions{}, nil).Export(context.Background(), fx.request)
	require.NoError(t, err)

	info, err := os.Stat(fx.request.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestExportService_DatabaseInDirectoryWithHash(t *testing.T) {
	fx := newExportFixture(t)
	mounted := filepath.Join(fx.dir, "Kindle #2", "system")
	require.NoError(t, os.MkdirAll(mounted, 0o755))
	dbPath := filepath.Join(mounted, "vocab.db")
	require.NoError(t, os.Rename(fx.request.DatabasePath, dbPath))
	fx.request.DatabasePath = dbPath

	result, err := NewExportService(fooResolver(), ExportOptions{}, nil).Export(context.Background(), fx.request)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Written)
	assert.Equal(t, PhaseWatermarkAdvanced, result.Phase)
}

func TestExportService_RowsKeepLookupOrder(t *testing.T) {
	dir := t.TempDir()
	dbPath := createVocabDB(t, dir)
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}
	for i, w := range words {
		insertLookup(t, dbPath, w, w, "Say "+w+".", int64(100+i))
	}

	req := ExportRequest{
		DatabasePath:  dbPath,
		WatermarkPath: filepath.Join(dir, "wm.txt"),
		OutputPath:    filepath.Join(dir, "out.csv"),
	}
	_, err := NewExportService(&fakeResolver{}, ExportOptions{Workers: 8}, nil).Export(context.Background(), req)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(readFile(t, req.OutputPath), "\n"), "\n")
	require.Len(t, lines, len(words))
	for i, w := range words {
		assert.True(t, strings.HasPrefix(lines[i], w+","), "line %d: %s", i, lines[i])
	}
	assert.Equal(t, "107\n", readFile(t, req.WatermarkPath))
}

func TestExportService_NothingNew(t *testing.T) {
	fx := newExportFixture(t)
	svc := NewExportService(fooResolver(), ExportOptions{Workers: 2}, nil)

	_, err := svc.Export(context.Background(), fx.request)
	require.NoError(t, err)

	result, err := svc.Export(context.Background(), fx.request)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Fetched)
	assert.Equal(t, int64(1002), result.WatermarkAfter)
	assert.Empty(t, readFile(t, fx.request.OutputPath))
	assert.Equal(t, "1000\n1002\n", readFile(t, fx.request.WatermarkPath), "unchanged watermark is not appended")
}

func TestExportService_WatermarkNeverMovesBackward(t *testing.T) {
	fx := newExportFixture(t)
	require.NoError(t, os.WriteFile(fx.request.WatermarkPath, []byte("5000\n"), 0o644))

	result, err := NewExportService(fooResolver(), ExportOptions{}, nil).Export(context.Background(), fx.request)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Written)
	assert.Equal(t, int64(5000), result.WatermarkAfter)
	assert.Equal(t, "5000\n", readFile(t, fx.request.WatermarkPath))
}

func TestExportService_MissingWatermarkExportsEverything(t *testing.T) {
	fx := newExportFixture(t)
	require.NoError(t, os.Remove(fx.request.WatermarkPath))

	result, err := NewExportService(fooResolver(), ExportOptions{Delimiter: exporters.DelimiterTab}, nil).
		Export(context.Background(), fx.request)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Written)
	assert.Equal(t,
		"baz\t\tAn old <b>baz</b>.\t\n"+
			"foo\tˈfü\tThe <b>foo</b> ran.\ta thing\n"+
			"bar\t\tA <b>bar</b> stood.\t\n",
		readFile(t, fx.request.OutputPath))
	assert.Equal(t, "1002\n", readFile(t, fx.request.WatermarkPath))
}

func TestExportService_MissingDatabaseAborts(t *testing.T) {
	fx := newExportFixture(t)
	fx.request.DatabasePath = filepath.Join(fx.dir, "nope.db")

	result, err := NewExportService(fooResolver(), ExportOptions{}, nil).Export(context.Background(), fx.request)
	require.Error(t, err)

	var srcErr *kindle.SourceError
	require.True(t, errors.As(err, &srcErr))
	assert.Contains(t, err.Error(), "nope.db")
	assert.Equal(t, PhaseAborted, result.Phase)
	assert.Equal(t, "1000\n", readFile(t, fx.request.WatermarkPath))
	assert.NoFileExists(t, fx.request.OutputPath)
}

func TestExportService_UnwritableOutputAborts(t *testing.T) {
	fx := newExportFixture(t)
	fx.request.OutputPath = filepath.Join(fx.dir, "missing-dir", "import.csv")

	_, err := NewExportService(fooResolver(), ExportOptions{}, nil).Export(context.Background(), fx.request)
	require.Error(t, err)

	assert.Equal(t, "1000\n", readFile(t, fx.request.WatermarkPath))
	assert.NoFileExists(t, fx.request.OutputPath)
}

func TestExportService_CancelledMidRunLeavesNoTrace(t *testing.T) {
	fx := newExportFixture(t)
	require.NoError(t, os.WriteFile(fx.request.OutputPath, []byte("previous export\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver := fooResolver()
	resolver.onCall = func(word string) {
		if word == "bar" {
			cancel()
		}
	}

	_, err := NewExportService(resolver, ExportOptions{Workers: 1}, nil).Export(ctx, fx.request)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, "1000\n", readFile(t, fx.request.WatermarkPath))
	assert.Equal(t, "previous export\n", readFile(t, fx.request.OutputPath))

	entries, err := os.ReadDir(fx.dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temporary file %s left behind", e.Name())
	}
}

func TestExportService_RecordsRuns(t *testing.T) {
	fx := newExportFixture(t)
	recorder := &fakeRecorder{}
	svc := NewExportService(fooResolver(), ExportOptions{}, nil)
	svc.SetRunRecorder(recorder)

	_, err := svc.Export(context.Background(), fx.request)
	require.NoError(t, err)

	fx.request.DatabasePath = filepath.Join(fx.dir, "nope.db")
	_, err = svc.Export(context.Background(), fx.request)
	require.Error(t, err)

	require.Len(t, recorder.started, 2)
	require.Len(t, recorder.finished, 2)

	ok := recorder.finished[0]
	assert.Equal(t, entities.ExportRunStatusSucceeded, ok.Status)
	assert.Equal(t, int64(1000), ok.WatermarkBefore)
	assert.Equal(t, int64(1002), ok.WatermarkAfter)
	assert.Equal(t, 2, ok.Written)
	assert.Equal(t, 1, ok.NotFound)
	assert.NotNil(t, ok.CompletedAt)
	assert.Empty(t, ok.Error)

	failed := recorder.finished[1]
	assert.Equal(t, entities.ExportRunStatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "nope.db")
}

func TestExportService_RecorderFailureDoesNotFailExport(t *testing.T) {
	fx := newExportFixture(t)
	svc := NewExportService(fooResolver(), ExportOptions{}, nil)
	svc.SetRunRecorder(&fakeRecorder{err: errors.New("disk full")})

	result, err := svc.Export(context.Background(), fx.request)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Written)
}

func TestExportService_WithDictionaryServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/foo":
			w.Write([]byte(`[{"hwi": {"hw": "foo", "prs": [{"mw": "ˈfü"}]}, "shortdef": ["a thing", "another, thing"]}]`))
		case "/bar":
			w.Write([]byte(`["barre"]`))
		case "/barre":
			w.Write([]byte(`[{"hwi": {"hw": "bar*re"}, "shortdef": ["a handrail"]}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := dictionary.NewMerriamWebsterClient(dictionary.MerriamWebsterConfig{BaseURL: srv.URL, APIKey: "k"}, nil)
	resolver := dictionary.NewResolver(client, dictionary.DefaultMaxHops, nil)

	fx := newExportFixture(t)
	result, err := NewExportService(resolver, ExportOptions{Workers: 2}, nil).Export(context.Background(), fx.request)
	require.NoError(t, err)

	assert.Equal(t, 0, result.NotFound)
	assert.Equal(t,
		"foo,ˈfü,The <b>foo</b> ran.,\"a thing; another, thing\"\n"+
			"barre,,A <b>bar</b> stood.,a handrail\n",
		readFile(t, fx.request.OutputPath))
}
