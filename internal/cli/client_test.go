package cli

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/csm/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newAgent starts a fake agent that accepts admin/secret and serves mux
// behind a bearer token check
func newAgent(t *testing.T, mux *http.ServeMux) *httptest.Server {
	t.Helper()
	root := http.NewServeMux()
	root.HandleFunc("POST /api/v1/login", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["username"] != "admin" || creds["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Authorization", "Bearer tok-1")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"Logged in"}`))
	})
	root.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})
	srv := httptest.NewServer(root)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestRestClient_Login(t *testing.T) {
	srv := newAgent(t, http.NewServeMux())
	c := NewRestClient(srv.URL+"/", time.Second, discardLogger())

	err := c.Login(t.Context(), "admin", "wrong")
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Empty(t, c.token)

	require.NoError(t, c.Login(t.Context(), "admin", "secret"))
	assert.Equal(t, "tok-1", c.token)
}

func TestRestClient_LoginUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewRestClient(srv.URL, time.Second, discardLogger())
	assert.ErrorIs(t, c.Login(t.Context(), "admin", "secret"), ErrNotLoggedIn)
}

func TestRestClient_Logout(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, `{"message":"Logged out"}`)
	})
	srv := newAgent(t, mux)
	c := NewRestClient(srv.URL, time.Second, discardLogger())

	c.Logout(t.Context())
	assert.Zero(t, calls.Load(), "no session, no request")

	require.NoError(t, c.Login(t.Context(), "admin", "secret"))
	c.Logout(t.Context())
	assert.Equal(t, int32(1), calls.Load())
	assert.Empty(t, c.token)
}

func TestRestClient_Permissions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/permissions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"alerts":{"read":true,"write":false}}`)
	})
	srv := newAgent(t, mux)
	c := NewRestClient(srv.URL, time.Second, discardLogger())

	_, err := c.Permissions(t.Context())
	assert.ErrorIs(t, err, models.ErrForbidden)

	require.NoError(t, c.Login(t.Context(), "admin", "secret"))
	perms, err := c.Permissions(t.Context())
	require.NoError(t, err)
	assert.True(t, perms["alerts"]["read"])
	assert.False(t, perms["alerts"]["write"])
}

func TestRestClient_Call(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/alerts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "60s", r.URL.Query().Get("duration"))
		writeJSON(w, http.StatusOK, `{"alerts":[{"alert_id":12345678901234}]}`)
	})
	mux.HandleFunc("PATCH /api/v1/alerts/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "mine", body["comment"])
		writeJSON(w, http.StatusNotFound, `{"error":"alerts_not_found","message":"Alert was not found"}`)
	})
	srv := newAgent(t, mux)
	c := NewRestClient(srv.URL, time.Second, discardLogger())
	require.NoError(t, c.Login(t.Context(), "admin", "secret"))

	show, err := Parse([]string{"alerts", "show"}, io.Discard)
	require.NoError(t, err)
	resp, err := c.Call(t.Context(), show)
	require.NoError(t, err)
	assert.True(t, resp.OK())
	alerts := resp.Data.(map[string]any)["alerts"].([]any)
	assert.Equal(t, json.Number("12345678901234"), alerts[0].(map[string]any)["alert_id"])

	ack, err := Parse([]string{"alerts", "acknowledge", "9", "mine"}, io.Discard)
	require.NoError(t, err)
	resp, err = c.Call(t.Context(), ack)
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestRestClient_CallErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/email/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"sender":`)
	})
	srv := newAgent(t, mux)
	cmd, err := Parse([]string{"email", "show"}, io.Discard)
	require.NoError(t, err)

	t.Run("session missing", func(t *testing.T) {
		c := NewRestClient(srv.URL, time.Second, discardLogger())
		_, err := c.Call(t.Context(), cmd)
		assert.ErrorIs(t, err, ErrNotLoggedIn)
	})

	t.Run("unparsable body", func(t *testing.T) {
		c := NewRestClient(srv.URL, time.Second, discardLogger())
		require.NoError(t, c.Login(t.Context(), "admin", "secret"))
		_, err := c.Call(t.Context(), cmd)
		assert.Equal(t, models.KeyInvalidResponse, models.ErrorKey(err))
	})

	t.Run("agent down", func(t *testing.T) {
		down := httptest.NewServer(http.NotFoundHandler())
		down.Close()
		c := NewRestClient(down.URL, time.Second, discardLogger())
		_, err := c.Call(t.Context(), cmd)
		assert.ErrorIs(t, err, models.ErrServiceUnavailable)
		assert.Contains(t, err.Error(), "Cannot connect to csm agent's host")
	})
}

func TestRestClient_CallDownload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/auditlogs/download/csm", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/gzip")
		w.Header().Set("Content-Disposition", `attachment; filename="audit_csm_1_2.tar.gz"`)
		_, _ = w.Write([]byte{0x1f, 0x8b, 0x08})
	})
	srv := newAgent(t, mux)
	c := NewRestClient(srv.URL, time.Second, discardLogger())
	require.NoError(t, c.Login(t.Context(), "admin", "secret"))

	cmd, err := Parse([]string{"auditlog", "download", "csm", "1", "2"}, io.Discard)
	require.NoError(t, err)
	resp, err := c.Call(t.Context(), cmd)
	require.NoError(t, err)

	assert.Nil(t, resp.Data)
	assert.Equal(t, []byte{0x1f, 0x8b, 0x08}, resp.Raw)
	name, err := resp.AttachmentName()
	require.NoError(t, err)
	assert.Equal(t, "audit_csm_1_2.tar.gz", name)
}

func TestResponse_AttachmentNameMissing(t *testing.T) {
	resp := &Response{Header: http.Header{}}
	_, err := resp.AttachmentName()
	assert.Error(t, err)
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}
