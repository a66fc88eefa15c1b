package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SARVESHVARADKAR123/ledgermsg/internal/domain"
	"github.com/SARVESHVARADKAR123/ledgermsg/internal/flow"
	http_transport "github.com/SARVESHVARADKAR123/ledgermsg/internal/transport/http"
)

var testHash = domain.SHA256([]byte("whitelist"))

func fakeNode(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/attachments", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http_transport.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing token")
			return
		}
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		file.Close()
		assert.Equal(t, "whitelist.csv", header.Filename)
		assert.Equal(t, "ops", r.FormValue("uploader"))
		w.Header().Set("Location", "attachments/"+testHash.String())
		w.WriteHeader(http.StatusCreated)
	})
	r.Post("/messages", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req["contents"] == "rm -rf" {
			http_transport.WriteJSON(w, http.StatusUnprocessableEntity, http_transport.ErrorResponse{
				Error: "not_in_whitelist", Message: "contract rejected", FlowID: "f-bad",
			})
			return
		}
		http_transport.WriteJSON(w, http.StatusCreated, http_transport.FlowResult{
			FlowID: "f1", State: flow.StateCommitted, TxID: testHash, LinearID: "thread-1",
		})
	})
	r.Post("/messages/{linearID}/reply", func(w http.ResponseWriter, r *http.Request) {
		http_transport.WriteJSON(w, http.StatusAccepted, http_transport.FlowResult{
			FlowID: "f2", State: flow.StateAwaitingCounterSignature,
		})
	})
	r.Get("/messages", func(w http.ResponseWriter, r *http.Request) {
		http_transport.WriteJSON(w, http.StatusOK, []http_transport.MessageView{
			{LinearID: "thread-1", Sender: "Alice", Recipient: "Bob", Contents: "hello world"},
		})
	})
	r.Get("/flows/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") != "f1" {
			http_transport.WriteError(w, http.StatusNotFound, "flow_not_found", "no such flow")
			return
		}
		http_transport.WriteJSON(w, http.StatusOK, http_transport.FlowView{
			FlowID: "f1", Role: flow.RoleResponder, State: flow.StateFailed, Counterparty: "Alice",
			ErrorCode: "timeout", ErrorDetail: "no answer", UpdatedAt: time.Now(),
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--node", srv.URL, "--token", "tok"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUploadCommand(t *testing.T) {
	srv := fakeNode(t)
	path := filepath.Join(t.TempDir(), "whitelist.csv")
	require.NoError(t, os.WriteFile(path, []byte("valid_messages\nhello\n"), 0o600))

	out, err := run(t, srv, "upload", path, "--uploader", "ops")
	require.NoError(t, err)
	assert.Contains(t, out, "Attachment uploaded with hash - "+testHash.String())
}

func TestSendCommand(t *testing.T) {
	srv := fakeNode(t)

	out, err := run(t, srv, "send", "Bob", "hello world", "-a", "whitelist.csv")
	require.NoError(t, err)
	assert.Contains(t, out, "COMMITTED")
	assert.Contains(t, out, "thread-1")

	_, err = run(t, srv, "send", "Bob", "rm -rf", "-a", "whitelist.csv")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, "not_in_whitelist", apiErr.Code)
	assert.Equal(t, "f-bad", apiErr.FlowID)

	_, err = run(t, srv, "send", "Bob", "hello world")
	assert.Error(t, err, "attachment flag is required")
}

func TestReplyCommand_Pending(t *testing.T) {
	srv := fakeNode(t)
	out, err := run(t, srv, "reply", "thread-1", "hi back", "-a", "whitelist.csv")
	require.NoError(t, err)
	assert.Contains(t, out, "PENDING")
	assert.Contains(t, out, "f2")
}

func TestListCommand(t *testing.T) {
	srv := fakeNode(t)
	out, err := run(t, srv, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "hello world")
}

func TestFlowCommand(t *testing.T) {
	srv := fakeNode(t)
	out, err := run(t, srv, "flow", "f1")
	require.NoError(t, err)
	assert.Contains(t, out, "Failed")
	assert.Contains(t, out, "timeout: no answer")

	_, err = run(t, srv, "flow", "nope")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestHealthCommand_NeedsGRPC(t *testing.T) {
	srv := fakeNode(t)
	_, err := run(t, srv, "health")
	assert.ErrorContains(t, err, "--grpc")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a:1", "b:2"}, splitList(" a:1,,b:2 "))
	assert.Nil(t, splitList(""))
}
