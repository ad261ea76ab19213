package log

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"off", zerolog.Disabled},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWithFieldsAddsToContextLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Build(Config{Output: &buf, Service: "test"})
	ctx := l.WithContext(context.Background())

	ctx = WithFields(ctx, FieldChatID, "c1", "dangling")
	Ctx(ctx).Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line[FieldChatID] != "c1" || line[FieldService] != "test" {
		t.Fatalf("unexpected fields %v", line)
	}
	if _, ok := line["dangling"]; ok {
		t.Fatalf("dangling key should be ignored: %v", line)
	}
}

func TestAccessLog(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	l := Build(Config{Output: &buf})

	r := gin.New()
	r.Use(AccessLog(&l))
	r.GET("/chats/:id", func(c *gin.Context) {
		c.Set(ActorKey, "u1")
		Ctx(c.Request.Context()).Info().Msg("inside")
		c.Status(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/chats/42", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(RequestIDHeader); got != "req-1" {
		t.Fatalf("expected request id echoed, got %q", got)
	}

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}
	var inner, access map[string]any
	if err := json.Unmarshal(lines[0], &inner); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := json.Unmarshal(lines[1], &access); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if inner[FieldRequestID] != "req-1" {
		t.Fatalf("handler logger missing request id: %v", inner)
	}
	if access[FieldRoute] != "/chats/:id" || access[FieldUserID] != "u1" || access["level"] != "warn" {
		t.Fatalf("unexpected access line %v", access)
	}
	if access[FieldStatus] != float64(http.StatusNotFound) {
		t.Fatalf("unexpected status %v", access[FieldStatus])
	}
}
