package records

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewHTTPClient(HTTPConfig{
		Endpoint:     srv.URL,
		ProjectID:    "proj-1",
		APIKey:       "key-1",
		DatabaseID:   "db",
		CollectionID: "sessions",
	})
	require.NoError(t, err)
	return c
}

func TestNewHTTPClient_RequiresConfig(t *testing.T) {
	_, err := NewHTTPClient(HTTPConfig{})
	assert.Error(t, err)

	_, err = NewHTTPClient(HTTPConfig{Endpoint: "https://store.example.com"})
	assert.Error(t, err, "database and collection ids are required")
}

func TestCreateSession(t *testing.T) {
	var gotPath, gotProject string
	var gotBody struct {
		DocumentID string         `json:"documentId"`
		Data       SessionPayload `json:"data"`
	}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotProject = r.Header.Get("X-Project")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"$id": "rec-abc"}`))
	}))

	id, err := c.CreateSession(context.Background(), SessionPayload{
		SessionID: "sess-1",
		StudentID: "student-1",
		Status:    "active",
	})
	require.NoError(t, err)
	assert.Equal(t, "rec-abc", id)
	assert.Equal(t, "/databases/db/collections/sessions/documents", gotPath)
	assert.Equal(t, "proj-1", gotProject)
	assert.NotEmpty(t, gotBody.DocumentID)
	assert.Equal(t, "sess-1", gotBody.Data.SessionID)
}

func TestCreateSession_MissingSessionID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request should be made")
	}))
	_, err := c.CreateSession(context.Background(), SessionPayload{})
	assert.ErrorContains(t, err, "missing session_id")
}

func TestPatchSession(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody struct {
		Data SessionPatch `json:"data"`
	}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"$id": "rec-abc"}`))
	}))

	err := c.PatchSession(context.Background(), "rec-abc", SessionPatch{
		Status:            "active",
		CurrentBlockIndex: 2,
		OverallMastery:    0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/databases/db/collections/sessions/documents/rec-abc", gotPath)
	assert.Equal(t, 2, gotBody.Data.CurrentBlockIndex)
}

func TestPatchSession_MissingRecordID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request should be made")
	}))
	err := c.PatchSession(context.Background(), "", SessionPatch{})
	assert.ErrorContains(t, err, "missing record id")
}

func TestSessionForStudent(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "student-1", r.URL.Query().Get("student_id"))
		assert.Equal(t, "active", r.URL.Query().Get("status"))
		w.Write([]byte(`{"documents": [{
			"$id": "rec-7",
			"session_id": "sess-1",
			"student_id": "student-1",
			"status": "active",
			"current_block_index": 1,
			"blocks": "[{\"block_id\":\"b1\"}]",
			"total_blocks": 1
		}]}`))
	}))

	stored, err := c.SessionForStudent(context.Background(), "student-1", "lesson-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "rec-7", stored.RecordID)
	assert.Equal(t, "sess-1", stored.Payload.SessionID)
	assert.Equal(t, 1, stored.Payload.CurrentBlockIndex)
}

func TestSessionForStudent_NoMatch(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"documents": []}`))
	}))

	stored, err := c.SessionForStudent(context.Background(), "student-1", "lesson-1")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSessionForStudent_ServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.SessionForStudent(context.Background(), "student-1", "lesson-1")
	assert.Error(t, err)
}

func TestEncodeField(t *testing.T) {
	s, err := EncodeField([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, s)

	s, err = EncodeField(nil)
	require.NoError(t, err)
	assert.Equal(t, "", s)
}
