package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPrompter answers prompts from fixed lists and records the labels
type scriptedPrompter struct {
	answers   []string
	passwords []string
	labels    []string
}

func (p *scriptedPrompter) Prompt(label string) (string, error) {
	p.labels = append(p.labels, label)
	if len(p.answers) == 0 {
		return "", errors.New("no more answers")
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func (p *scriptedPrompter) Password(label string) (string, error) {
	p.labels = append(p.labels, label)
	if len(p.passwords) == 0 {
		return "", errors.New("no more passwords")
	}
	pw := p.passwords[0]
	p.passwords = p.passwords[1:]
	return pw, nil
}

type appHarness struct {
	app     *App
	prompt  *scriptedPrompter
	stdout  bytes.Buffer
	stderr  bytes.Buffer
	logouts atomic.Int32
	written map[string][]byte
}

// newAppHarness wires an App to a fake agent granting perms
func newAppHarness(t *testing.T, perms string, mux *http.ServeMux) *appHarness {
	t.Helper()
	h := &appHarness{prompt: &scriptedPrompter{}, written: map[string][]byte{}}
	mux.HandleFunc("GET /api/v1/permissions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, perms)
	})
	mux.HandleFunc("POST /api/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		h.logouts.Add(1)
		writeJSON(w, http.StatusOK, `{"message":"Logged out"}`)
	})
	srv := newAgent(t, mux)

	h.app = &App{
		Config:   &Config{URL: srv.URL, Username: "admin", Password: "secret", Timeout: time.Second},
		Prompter: h.prompt,
		Logger:   discardLogger(),
		Stdout:   &h.stdout,
		Stderr:   &h.stderr,
		WriteFile: func(name string, data []byte) error {
			h.written[name] = data
			return nil
		},
	}
	return h
}

const allPerms = `{"users":{"read":true,"write":true},"alerts":{"read":true,"write":true},"auditlog":{"read":true,"write":false}}`

func TestApp_RunShowsTable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/alerts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("all"))
		writeJSON(w, http.StatusOK, `{"alerts":[{"alert_id":3,"severity":"critical","module":"disk"}]}`)
	})
	h := newAppHarness(t, allPerms, mux)

	code := h.app.Run(context.Background(), []string{"alerts", "show", "-a"})

	assert.Equal(t, ExitOK, code)
	assert.Contains(t, h.stdout.String(), "Alert Id")
	assert.Contains(t, h.stdout.String(), "critical")
	assert.Empty(t, h.stderr.String())
	assert.Equal(t, int32(1), h.logouts.Load())
}

func TestApp_RunPromptsForMissingCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/csm/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"users":[]}`)
	})
	h := newAppHarness(t, allPerms, mux)
	h.app.Config.Username, h.app.Config.Password = "", ""
	h.prompt.answers = []string{"admin"}
	h.prompt.passwords = []string{"secret"}

	code := h.app.Run(context.Background(), []string{"users", "show"})

	assert.Equal(t, ExitOK, code)
	assert.Equal(t, []string{"Username", "Password"}, h.prompt.labels)
}

func TestApp_RunLoginFailure(t *testing.T) {
	h := newAppHarness(t, allPerms, http.NewServeMux())
	h.app.Config.Password = "wrong"

	code := h.app.Run(context.Background(), []string{"users", "show"})

	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, "Error: You are not authorized to run cli commands.\n", h.stderr.String())
	assert.Zero(t, h.logouts.Load())
}

func TestApp_RunPermissionDenied(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/v1/csm/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		t.Error("delete must not reach the agent")
	})
	h := newAppHarness(t, `{"users":{"read":true,"write":false}}`, mux)

	code := h.app.Run(context.Background(), []string{"users", "delete", "bob"})

	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, "Error: You are not allowed to delete users\n", h.stderr.String())
	assert.Equal(t, int32(1), h.logouts.Load())
}

func TestApp_RunCreateUserPromptsPassword(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/csm/users", func(w http.ResponseWriter, r *http.Request) {
		created := decodeBody(t, r)
		assert.Equal(t, "N3w!passw0rd", created["password"])
		assert.Equal(t, []any{"monitor"}, created["roles"])
		writeJSON(w, http.StatusCreated, `{"username":"bob","user_type":"csm","roles":["monitor"]}`)
	})
	h := newAppHarness(t, allPerms, mux)
	h.prompt.passwords = []string{"N3w!passw0rd", "N3w!passw0rd"}

	code := h.app.Run(context.Background(), []string{"users", "create", "bob", "-r", "monitor"})

	require.Equal(t, ExitOK, code, h.stderr.String())
	assert.Contains(t, h.stdout.String(), "bob")
}

func TestApp_RunPasswordMismatch(t *testing.T) {
	h := newAppHarness(t, allPerms, http.NewServeMux())
	h.prompt.passwords = []string{"one", "two"}

	code := h.app.Run(context.Background(), []string{"users", "update", "bob", "-p"})

	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, "Error: Passwords do not match\n", h.stderr.String())
}

func TestApp_RunServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /api/v1/alerts/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"error":"alerts_invalid","message":"Alert is already acknowledged"}`)
	})
	h := newAppHarness(t, allPerms, mux)

	code := h.app.Run(context.Background(), []string{"alerts", "acknowledge", "5", "seen"})

	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, "Alert with id 5 wasn't acknowledged. Error: Alert is already acknowledged. Error code: 400.\n", h.stderr.String())
}

func TestApp_RunSavesDownload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/auditlogs/download/csm", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/gzip")
		w.Header().Set("Content-Disposition", `attachment; filename="../../audit_csm.tar.gz"`)
		_, _ = w.Write([]byte("archive"))
	})
	h := newAppHarness(t, allPerms, mux)

	code := h.app.Run(context.Background(), []string{"auditlog", "download", "csm", "1", "2"})

	require.Equal(t, ExitOK, code, h.stderr.String())
	assert.Equal(t, map[string][]byte{"audit_csm.tar.gz": []byte("archive")}, h.written)
	assert.Equal(t, "Saved audit_csm.tar.gz (7 bytes)\n", h.stdout.String())
}

func TestApp_RunUsageError(t *testing.T) {
	h := newAppHarness(t, allPerms, http.NewServeMux())

	code := h.app.Run(context.Background(), []string{"alerts", "explode"})

	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, h.stderr.String(), `invalid argument "explode" for "csmcli alerts"`)
}

func TestApp_RunLocalSetup(t *testing.T) {
	h := newAppHarness(t, allPerms, http.NewServeMux())
	var got *Command
	h.app.Setup = func(ctx context.Context, cmd *Command) error {
		got = cmd
		return nil
	}

	code := h.app.Run(context.Background(), []string{"setup", "init"})

	assert.Equal(t, ExitOK, code)
	require.NotNil(t, got)
	assert.Equal(t, "init", got.Action)
	assert.Zero(t, h.logouts.Load(), "setup does not log in")

	h.app.Setup = func(context.Context, *Command) error { return errors.New("storage unreachable") }
	assert.Equal(t, ExitFailure, h.app.Run(context.Background(), []string{"setup", "migrate"}))
	assert.Contains(t, h.stderr.String(), "Error: storage unreachable")
}
