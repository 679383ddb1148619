package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RouteLabelAndUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.POST("/webhooks/twilio", func(c *gin.Context) { c.String(http.StatusOK, "<Response/>") })

	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/webhooks/twilio", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "unmatched", "404"))

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodPost, "/webhooks/twilio", http.StatusOK},
		{http.MethodGet, "/nope/+919800000001", http.StatusNotFound},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("%s %s -> %d", tc.method, tc.path, w.Code)
		}
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/webhooks/twilio", "200")); got != baseOK+1 {
		t.Fatalf("route counter = %v; want %v", got, baseOK+1)
	}
	// Raw paths never become labels.
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "unmatched", "404")); got != base404+1 {
		t.Fatalf("unmatched counter = %v; want %v", got, base404+1)
	}
	if v := testutil.ToFloat64(httpInflight); v != 0 {
		t.Fatalf("inflight = %v", v)
	}
}
