package responseformat

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	Depth int    `json:"depth"`
	Gas   string `json:"gas"`
}

func TestWantsMsgPack(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		accept string
		want   bool
	}{
		{"default", "/ndl", "", false},
		{"query", "/ndl?format=msgpack", "", true},
		{"other format", "/ndl?format=xml", "", false},
		{"accept", "/ndl", "application/x-msgpack", true},
		{"accept json", "/ndl", "application/json", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if got := WantsMsgPack(req); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriteResponseJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ndl", nil)

	err := NewFormatter().WriteResponse(rec, req, http.StatusCreated, payload{Depth: 30, Gas: "32"}, map[string]string{"X-Run": "abc"})
	if err != nil {
		t.Fatal(err)
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("status %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != ContentTypeJSON || rec.Header().Get("X-Run") != "abc" {
		t.Errorf("unexpected headers %v", rec.Header())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}

	var got payload
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Depth != 30 || got.Gas != "32" {
		t.Errorf("got %+v", got)
	}
}

func TestWriteResponseMsgPack(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ndl?format=msgpack", nil)

	if err := NewFormatter().WriteResponse(rec, req, http.StatusOK, payload{Depth: 18, Gas: "21"}, nil); err != nil {
		t.Fatal(err)
	}
	if rec.Header().Get("Content-Type") != ContentTypeMsgPack {
		t.Errorf("content type %q", rec.Header().Get("Content-Type"))
	}

	var got map[string]any
	if err := msgpack.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if _, ok := got["depth"]; !ok {
		t.Errorf("msgpack body should use json field names, got %v", got)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/runs/x", nil)

	if err := NewFormatter().WriteError(rec, req, http.StatusNotFound, errors.New("run not found")); err != nil {
		t.Fatal(err)
	}

	var body ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusNotFound || body.Status != http.StatusNotFound || body.Error != "run not found" {
		t.Errorf("got %d %+v", rec.Code, body)
	}
}

func TestDecodeRequest(t *testing.T) {
	packed, err := msgpack.Marshal(map[string]any{"depth": 12, "gas": "50"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		contentType string
		body        []byte
		want        payload
		wantErr     bool
	}{
		{"json", "application/json", []byte(`{"depth":40,"gas":"18,45"}`), payload{40, "18,45"}, false},
		{"no content type", "", []byte(`{"depth":5}`), payload{Depth: 5}, false},
		{"unknown field", "application/json", []byte(`{"depth":5,"bogus":1}`), payload{}, true},
		{"msgpack", ContentTypeMsgPack, packed, payload{12, "50"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/runs", bytes.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			var got payload
			err := DecodeRequest(req, &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDecodeRequestGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader("{"))
	var got payload
	if err := DecodeRequest(req, &got); err == nil {
		t.Error("expected an error for truncated JSON")
	}
}
