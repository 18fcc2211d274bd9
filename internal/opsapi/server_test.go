package opsapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/warden/internal/moderation"
	"github.com/keshon/warden/internal/storage"
)

type fakeSanctions struct {
	pending []moderation.PendingSanction
	saveErr error
	saves   int
	lastErr error
	swept   []moderation.PendingSanction
}

func (f *fakeSanctions) Pending() []moderation.PendingSanction { return f.pending }

func (f *fakeSanctions) Pardon(scopeID, subjectID int64) bool {
	for i, p := range f.pending {
		if p.ScopeID == scopeID && p.SubjectID == subjectID {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (f *fakeSanctions) Save(context.Context) error {
	f.saves++
	return f.saveErr
}

func (f *fakeSanctions) RunSweep(context.Context) []moderation.PendingSanction { return f.swept }
func (f *fakeSanctions) LastSaveError() error                                 { return f.lastErr }
func (f *fakeSanctions) CurrentEpochHours() int64                             { return 497892 }

type fakeHistory map[int64][]storage.CommandRecord

func (f fakeHistory) CommandHistory(_ context.Context, scopeID int64) ([]storage.CommandRecord, error) {
	if scopeID == 13 {
		return nil, errors.New("disk gone")
	}
	return f[scopeID], nil
}

func serve(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	sanctions := &fakeSanctions{pending: []moderation.PendingSanction{{SubjectID: 1, ScopeID: 2, ExpiryEpochHours: 3}}}
	s := New(Config{
		Sanctions:   sanctions,
		ActiveGames: func() int { return 4 },
		Jobs:        func() []string { return []string{"sanction-autosave", "sanction-sweep"} },
	})

	rec := serve(t, s, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 1, body.Pending)
	assert.Equal(t, int64(497892), body.EpochHour)
	require.NotNil(t, body.ActiveGames)
	assert.Equal(t, 4, *body.ActiveGames)
	assert.Equal(t, []string{"sanction-autosave", "sanction-sweep"}, body.Jobs)

	sanctions.lastErr = errors.New("disk full")
	rec = serve(t, s, http.MethodGet, "/healthz")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "disk full", body.LastSaveError)
}

func TestListSanctions(t *testing.T) {
	s := New(Config{Sanctions: &fakeSanctions{pending: []moderation.PendingSanction{
		{SubjectID: 1234567890123456789, ScopeID: 2, ExpiryEpochHours: 3},
	}}})

	rec := serve(t, s, http.MethodGet, "/sanctions")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []moderation.PendingSanction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, int64(1234567890123456789), got[0].SubjectID)

	rec = serve(t, New(Config{Sanctions: &fakeSanctions{}}), http.MethodGet, "/sanctions")
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestPardon(t *testing.T) {
	sanctions := &fakeSanctions{pending: []moderation.PendingSanction{{SubjectID: 7, ScopeID: 100, ExpiryEpochHours: 3}}}
	s := New(Config{Sanctions: sanctions})

	assert.Equal(t, http.StatusBadRequest, serve(t, s, http.MethodDelete, "/sanctions/abc/7").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, s, http.MethodDelete, "/sanctions/100/8").Code)

	assert.Equal(t, http.StatusNoContent, serve(t, s, http.MethodDelete, "/sanctions/100/7").Code)
	assert.Empty(t, sanctions.pending)
	assert.Equal(t, 1, sanctions.saves)
}

func TestSaveAndSweep(t *testing.T) {
	sanctions := &fakeSanctions{swept: []moderation.PendingSanction{{SubjectID: 1, ScopeID: 2, ExpiryEpochHours: 3}}}
	s := New(Config{Sanctions: sanctions})

	assert.Equal(t, http.StatusNoContent, serve(t, s, http.MethodPost, "/sanctions/save").Code)

	sanctions.saveErr = errors.New("read-only")
	rec := serve(t, s, http.MethodPost, "/sanctions/save")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "read-only")

	rec = serve(t, s, http.MethodPost, "/sanctions/sweep")
	require.Equal(t, http.StatusOK, rec.Code)
	var lifted []moderation.PendingSanction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lifted))
	assert.Len(t, lifted, 1)

	assert.Equal(t, http.StatusMethodNotAllowed, serve(t, s, http.MethodGet, "/sanctions/save").Code)
}

func TestHistory(t *testing.T) {
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	s := New(Config{
		Sanctions: &fakeSanctions{},
		History:   fakeHistory{5: {{ScopeID: 5, UserID: 1, Command: "admin mute", At: at}}},
	})

	rec := serve(t, s, http.MethodGet, "/history/5")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []storage.CommandRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "admin mute", got[0].Command)

	assert.JSONEq(t, "[]", serve(t, s, http.MethodGet, "/history/6").Body.String())
	assert.Equal(t, http.StatusInternalServerError, serve(t, s, http.MethodGet, "/history/13").Code)
	assert.Equal(t, http.StatusBadRequest, serve(t, s, http.MethodGet, "/history/x").Code)

	noHistory := New(Config{Sanctions: &fakeSanctions{}})
	assert.Equal(t, http.StatusNotFound, serve(t, noHistory, http.MethodGet, "/history/5").Code)
}
