package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/dealeval/internal/database"
	testingpkg "github.com/aristath/dealeval/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJobs struct {
	ran  []string
	fail map[string]error
}

func (f *fakeJobs) JobNames() []string { return []string{"cache_cleanup", "database_backup"} }

func (f *fakeJobs) RunByName(name string) error {
	f.ran = append(f.ran, name)
	return f.fail[name]
}

type pingModule struct{}

func (pingModule) RegisterRoutes(r chi.Router) {
	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
}

func newTestServer(t *testing.T, jobs JobRunner) (*Server, *database.DB) {
	t.Helper()
	db, cleanup := testingpkg.NewTestDB(t, database.NameDealEval)
	t.Cleanup(cleanup)

	srv := New(Config{
		Log:       zerolog.Nop(),
		Port:      8080,
		DevMode:   true,
		DataDir:   t.TempDir(),
		Databases: []*database.DB{db},
		Modules:   []RouteRegistrar{pingModule{}},
		Jobs:      jobs,
	})
	return srv, db
}

func serve(srv *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	srv, db := newTestServer(t, nil)

	rec := serve(srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"dealeval"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))

	require.NoError(t, db.Close())
	rec = serve(srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSystemStatus(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := serve(srv, http.MethodGet, "/api/system/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.GoVersion)
	assert.Positive(t, resp.Goroutines)
	require.Len(t, resp.Databases, 1)
	assert.Equal(t, "dealeval", resp.Databases[0].Name)
	assert.Equal(t, string(database.ProfileStandard), resp.Databases[0].Profile)
	assert.NotEmpty(t, resp.Databases[0].Path)
	assert.True(t, resp.Databases[0].Healthy)
	assert.NotEmpty(t, resp.Databases[0].Size)
}

func TestModulesAreMounted(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := serve(srv, http.MethodGet, "/api/ping")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestJobs(t *testing.T) {
	jobs := &fakeJobs{fail: map[string]error{"database_backup": errors.New("bucket unavailable")}}
	srv, _ := newTestServer(t, jobs)

	rec := serve(srv, http.MethodGet, "/api/system/jobs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"jobs":["cache_cleanup","database_backup"]}`, rec.Body.String())

	rec = serve(srv, http.MethodPost, "/api/system/jobs/cache_cleanup/run")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(srv, http.MethodPost, "/api/system/jobs/database_backup/run")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "bucket unavailable")

	rec = serve(srv, http.MethodPost, "/api/system/jobs/unknown/run")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, []string{"cache_cleanup", "database_backup"}, jobs.ran)
}

func TestJobs_NoneRegistered(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := serve(srv, http.MethodGet, "/api/system/jobs")
	assert.JSONEq(t, `{"jobs":[]}`, rec.Body.String())

	rec = serve(srv, http.MethodPost, "/api/system/jobs/cache_cleanup/run")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
