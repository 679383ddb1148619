package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestFail_EnvelopeAndLogging(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		code    string
		wantLog bool
	}{
		{"server error is logged", http.StatusInternalServerError, ErrCodeInboundFailed, true},
		{"client error is quiet", http.StatusNotFound, ErrCodeNotFound, false},
		{"forbidden is quiet", http.StatusForbidden, ErrCodeForbidden, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			var buf bytes.Buffer
			logger := zerolog.New(&buf)

			r := gin.New()
			r.Use(func(c *gin.Context) {
				c.Writer.Header().Set("X-Request-ID", "rid-1")
				c.Set("logger", &logger)
				c.Next()
			})
			r.GET("/x", func(c *gin.Context) {
				Fail(c, tc.status, tc.code, "msg")
				c.String(http.StatusOK, "must not run")
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
			if w.Code != tc.status {
				t.Fatalf("status=%d", w.Code)
			}
			var er ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
				t.Fatalf("json: %v (%s)", err, w.Body.String())
			}
			if er != (ErrorResponse{RequestID: "rid-1", Code: tc.code, Message: "msg"}) {
				t.Fatalf("body = %+v", er)
			}
			if logged := strings.Contains(buf.String(), `"level":"error"`); logged != tc.wantLog {
				t.Fatalf("logged=%v want %v: %s", logged, tc.wantLog, buf.String())
			}
		})
	}
}

func TestOK_WritesJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ok", func(c *gin.Context) {
		ok(c, http.StatusOK, ResetCredentialResponse{Message: "sent"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	var body ResetCredentialResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Message != "sent" {
		t.Fatalf("body=%s err=%v", w.Body.String(), err)
	}
}
