package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayusman/drishti/testdata"
)

func registerBody(name string, p testdata.Person) *bytes.Buffer {
	body, _ := json.Marshal(map[string]interface{}{"name": name, "box": p.Box})
	return bytes.NewBuffer(body)
}

func TestFaceHandler_Register(t *testing.T) {
	a := newTestApp(t, newTestStore(t), true)
	handler := NewFaceHandler(a)

	req := httptest.NewRequest(http.MethodPost, "/api/faces", registerBody("alice", testdata.Alice))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var response struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Samples int    `json:"samples"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Name != "alice" || response.Samples != 1 {
		t.Errorf("unexpected registration %+v", response)
	}
	if response.ID == "" {
		t.Error("expected registration id from the store")
	}

	if _, ok := a.Gallery().Get("alice"); !ok {
		t.Error("expected alice in the gallery")
	}
}

func TestFaceHandler_Register_Errors(t *testing.T) {
	outside := testdata.Person{Box: testdata.Alice.Box}
	outside.Box.Left, outside.Box.Right = 400, 500

	tests := []struct {
		name       string
		primed     bool
		body       string
		wantStatus int
	}{
		{"invalid json", true, "{not json", http.StatusBadRequest},
		{"missing name", true, registerBody("  ", testdata.Alice).String(), http.StatusBadRequest},
		{"box outside frame", true, registerBody("carol", outside).String(), http.StatusBadRequest},
		{"no frame yet", false, registerBody("carol", testdata.Alice).String(), http.StatusServiceUnavailable},
		{"face registered under another name", true, registerBody("mallory", testdata.Bob).String(), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t, nil, tt.primed)
			if err := a.Gallery().Add("bob", testdata.Bob.Embedding()); err != nil {
				t.Fatalf("Add() error = %v", err)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/faces", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			NewFaceHandler(a).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}

			var response errorResponse
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil || response.Error == "" {
				t.Errorf("expected JSON error body, got %q", rec.Body.String())
			}
		})
	}
}

func TestFaceHandler_ListGetDelete(t *testing.T) {
	a := newTestApp(t, nil, false)
	for _, p := range []testdata.Person{testdata.Bob, testdata.Alice} {
		if err := a.Gallery().Add(p.Name, p.Embedding()); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	handler := NewFaceHandler(a)

	t.Run("list is sorted by name", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/faces", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		var response listFacesResponse
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Count != 2 || response.Faces[0].Name != "alice" || response.Faces[1].Name != "bob" {
			t.Errorf("unexpected faces %+v", response)
		}
		if response.Faces[0].Dimension != testdata.Dimension {
			t.Errorf("expected dimension %d, got %d", testdata.Dimension, response.Faces[0].Dimension)
		}
	})

	t.Run("get", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/faces/bob", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/faces/nobody", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})

	t.Run("delete", func(t *testing.T) {
		for _, name := range []string{"bob", "bob", "nobody"} {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/faces/%s", name), nil))
			if rec.Code != http.StatusNoContent {
				t.Errorf("DELETE %s: expected status %d, got %d", name, http.StatusNoContent, rec.Code)
			}
		}
		if names := a.Gallery().Names(); len(names) != 1 || names[0] != "alice" {
			t.Errorf("expected only alice to remain, got %v", names)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/faces/alice", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})
}
