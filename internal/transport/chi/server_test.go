package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docrel/internal/domain"
	"github.com/kailas-cloud/docrel/internal/domain/kvdoc"
	"github.com/kailas-cloud/docrel/internal/domain/meta"
	"github.com/kailas-cloud/docrel/internal/domain/tableref"
	"github.com/kailas-cloud/docrel/internal/r2d"
	healthuc "github.com/kailas-cloud/docrel/internal/usecase/health"
	schemauc "github.com/kailas-cloud/docrel/internal/usecase/schema"
)

// --- Mocks ---

type mockDocuments struct {
	inserted   []*kvdoc.Document
	insertErr  error
	found      []r2d.Document
	findErr    error
	panicFind  bool
	database   string
	collection string
}

func (m *mockDocuments) Insert(_ context.Context, database, collection string, docs []*kvdoc.Document) ([]int64, error) {
	m.database, m.collection = database, collection
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	m.inserted = docs
	dids := make([]int64, len(docs))
	for i := range docs {
		dids[i] = int64(i)
	}
	return dids, nil
}

func (m *mockDocuments) Find(_ context.Context, database, collection string) ([]r2d.Document, error) {
	if m.panicFind {
		panic("boom")
	}
	m.database, m.collection = database, collection
	return m.found, m.findErr
}

type mockSchema struct {
	snapshot   *meta.Snapshot
	indexes    []*meta.Index
	created    bool
	err        error
	lastKeys   []schemauc.Key
	lastUnique bool
	dropped    []string
}

func (m *mockSchema) Snapshot() *meta.Snapshot { return m.snapshot }

func (m *mockSchema) ListIndexes(string, string) ([]*meta.Index, error) {
	return m.indexes, m.err
}

func (m *mockSchema) CreateIndex(_ context.Context, _, _, _ string, unique bool, keys []schemauc.Key) (bool, error) {
	m.lastKeys, m.lastUnique = keys, unique
	return m.created, m.err
}

func (m *mockSchema) DropIndex(_ context.Context, database, collection, name string) error {
	m.dropped = append(m.dropped, "index:"+database+"."+collection+"."+name)
	return m.err
}

func (m *mockSchema) DropCollection(_ context.Context, database, collection string) error {
	m.dropped = append(m.dropped, "collection:"+database+"."+collection)
	return m.err
}

func (m *mockSchema) DropDatabase(_ context.Context, database string) error {
	m.dropped = append(m.dropped, "database:"+database)
	return m.err
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type fixture struct {
	docs   *mockDocuments
	schema *mockSchema
	health *mockHealth
	h      http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		docs:   &mockDocuments{},
		schema: &mockSchema{snapshot: meta.Empty()},
		health: &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{"backend": healthuc.CheckOK}}},
	}
	f.h = NewServer(f.docs, f.schema, f.health, zap.NewNop()).Handler()
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// --- Tests ---

func TestInsertDocuments(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/databases/test/collections/people/documents",
		`{"documents":[{"name":"Ann","age":30},{"tags":["x",1.5]}]}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[insertResponse](t, rec)
	if diff := cmp.Diff([]int64{0, 1}, resp.Dids); diff != "" {
		t.Errorf("dids mismatch (-want +got):\n%s", diff)
	}
	if f.docs.database != "test" || f.docs.collection != "people" {
		t.Errorf("inserted into %s.%s", f.docs.database, f.docs.collection)
	}
	want := kvdoc.NewDocument(kvdoc.E("name", kvdoc.String("Ann")), kvdoc.E("age", kvdoc.Integer(30)))
	if len(f.docs.inserted) != 2 || !want.Equal(f.docs.inserted[0]) {
		t.Errorf("first document = %v, want %v", f.docs.inserted, want)
	}
}

func TestInsertDocuments_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode errorCode
	}{
		{"malformed body", `{"documents":`, codeBadRequest},
		{"document is not an object", `{"documents":[[1,2]]}`, codeInvalidDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rec := f.do(http.MethodPost, "/databases/test/collections/people/documents", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if got := decode[errorResponse](t, rec).Code; got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
			if f.docs.inserted != nil {
				t.Error("service called for a bad request")
			}
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   errorCode
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound, codeNotFound},
		{"already exists", domain.ErrAlreadyExists, http.StatusConflict, codeAlreadyExists},
		{"invalid document", domain.ErrInvalidDocument, http.StatusBadRequest, codeInvalidDocument},
		{"unsupported value", domain.ErrUnsupportedValue, http.StatusBadRequest, codeUnsupportedValue},
		{"invalid index", domain.ErrInvalidIndex, http.StatusBadRequest, codeInvalidIndex},
		{"commit conflict", domain.ErrCommitConflict, http.StatusConflict, codeCommitConflict},
		{"anything else", errors.New("disk on fire"), http.StatusInternalServerError, codeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.docs.insertErr = tt.err
			rec := f.do(http.MethodPost, "/databases/test/collections/people/documents", `{"documents":[{}]}`)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			resp := decode[errorResponse](t, rec)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if tt.wantCode == codeInternalError && resp.Message != "internal error" {
				t.Errorf("internal error leaked: %q", resp.Message)
			}
		})
	}
}

func TestErrorMapping_CommitConflictDetails(t *testing.T) {
	f := newFixture()
	f.docs.insertErr = domain.NewCommitConflict("doc part", "people", "people", "identifier taken")
	rec := f.do(http.MethodPost, "/databases/test/collections/people/documents", `{"documents":[{}]}`)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[conflictResponse](t, rec)
	if resp.Kind != "doc part" || resp.Name != "people" || resp.Identifier != "people" {
		t.Errorf("unexpected conflict body %+v", resp)
	}
}

func TestFindDocuments(t *testing.T) {
	f := newFixture()
	f.docs.found = []r2d.Document{
		{Did: 4, Doc: kvdoc.NewDocument(kvdoc.E("name", kvdoc.String("Ann")), kvdoc.E("n", kvdoc.Integer(2)))},
	}
	rec := f.do(http.MethodGet, "/databases/test/collections/people/documents", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decode[findResponse](t, rec)
	if len(resp.Documents) != 1 || resp.Documents[0].Did != 4 {
		t.Fatalf("unexpected documents %+v", resp.Documents)
	}
	got, err := kvdoc.ParseExtJSON(resp.Documents[0].Document)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.docs.found[0].Doc.Equal(got) {
		t.Errorf("document = %v, want %v", got, f.docs.found[0].Doc)
	}
}

func TestFindDocuments_Empty(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/databases/test/collections/people/documents", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"documents":[]`) {
		t.Errorf("body = %s, want an empty array", rec.Body.String())
	}
}

func TestDrops(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"collection", "/databases/test/collections/people", "collection:test.people"},
		{"database", "/databases/test", "database:test"},
		{"index", "/databases/test/collections/people/indexes/name_1", "index:test.people.name_1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rec := f.do(http.MethodDelete, tt.path, "")
			if rec.Code != http.StatusNoContent {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if diff := cmp.Diff([]string{tt.want}, f.schema.dropped); diff != "" {
				t.Errorf("drops mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCreateIndex(t *testing.T) {
	tests := []struct {
		name       string
		created    bool
		wantStatus int
	}{
		{"new", true, http.StatusCreated},
		{"identical", false, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.schema.created = tt.created
			rec := f.do(http.MethodPost, "/databases/test/collections/people/indexes",
				`{"name":"ix","unique":true,"keys":[{"path":"address.city"},{"path":"age","ordering":"-1"}]}`)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			want := []schemauc.Key{{Path: "address.city", Ordering: meta.Ascending}, {Path: "age", Ordering: meta.Descending}}
			if diff := cmp.Diff(want, f.schema.lastKeys); diff != "" {
				t.Errorf("keys mismatch (-want +got):\n%s", diff)
			}
			if !f.schema.lastUnique {
				t.Error("unique flag lost")
			}
		})
	}
}

func TestCreateIndex_BadOrdering(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodPost, "/databases/test/collections/people/indexes",
		`{"name":"ix","keys":[{"path":"a","ordering":"sideways"}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[errorResponse](t, rec).Code; got != codeInvalidIndex {
		t.Errorf("code = %q, want %q", got, codeInvalidIndex)
	}
}

func TestListIndexes(t *testing.T) {
	f := newFixture()
	f.schema.indexes = []*meta.Index{
		meta.NewIndex("city_1", false, []meta.IndexField{
			{TableRef: tableref.Root().Child("address"), Name: "city"},
			{TableRef: tableref.Root(), Name: "age", Ordering: meta.Descending},
		}),
	}
	rec := f.do(http.MethodGet, "/databases/test/collections/people/indexes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := indexListResponse{Indexes: []indexResponse{{
		Name: "city_1",
		Keys: []indexKey{{Path: "address.city", Ordering: "ASC"}, {Path: "age", Ordering: "DESC"}},
	}}}
	if diff := cmp.Diff(want, decode[indexListResponse](t, rec)); diff != "" {
		t.Errorf("indexes mismatch (-want +got):\n%s", diff)
	}
}

func TestGetMetadata(t *testing.T) {
	ref := tableref.Root()
	dp := meta.NewDocPartBuilder(ref, "people").
		AddColumn(meta.Column{Name: "name", Type: meta.FieldString, Identifier: "name_s"}).
		SetLastRid(3).
		Build()
	coll := meta.NewCollectionBuilder("people", "people").PutDocPart(dp).Build()
	db := meta.NewDatabaseBuilder("test", "test").Put(coll).Build()

	f := newFixture()
	f.schema.snapshot = meta.NewSnapshotBuilder(nil).WithVersion(2).Put(db).Build()
	rec := f.do(http.MethodGet, "/metadata", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := metadataResponse{
		Version: 2,
		Databases: []databaseResponse{{
			Name: "test", Identifier: "test",
			Collections: []collectionResponse{{
				Name: "people", Identifier: "people",
				DocParts: []docPartResponse{{
					TableRef: "", Identifier: "people", LastRid: 3,
					Columns: []columnResponse{{Name: "name", Type: meta.FieldString.String(), Identifier: "name_s"}},
				}},
				Indexes: []indexResponse{},
			}},
		}},
	}
	if diff := cmp.Diff(want, decode[metadataResponse](t, rec)); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		status     healthuc.Status
		wantStatus int
	}{
		{"healthy", healthuc.Healthy, http.StatusOK},
		{"degraded", healthuc.Degraded, http.StatusServiceUnavailable},
		{"unhealthy", healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.health.report.Status = tt.status
			rec := f.do(http.MethodGet, "/health", "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := decode[healthResponse](t, rec).Status; got != string(tt.status) {
				t.Errorf("body status = %q, want %q", got, tt.status)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture()
	f.do(http.MethodGet, "/health", "")
	rec := f.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "docrel_http_requests_total") {
		t.Error("http metrics not exported")
	}
}

func TestRequestIDAndRecover(t *testing.T) {
	f := newFixture()
	f.docs.panicFind = true
	rec := f.do(http.MethodGet, "/databases/test/collections/people/documents", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decode[errorResponse](t, rec).Code; got != codeInternalError {
		t.Errorf("code = %q", got)
	}

	rec = f.do(http.MethodGet, "/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture()
	rec := f.do(http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
	if got := decode[errorResponse](t, rec).Code; got != codeNotFound {
		t.Errorf("code = %q", got)
	}
}
