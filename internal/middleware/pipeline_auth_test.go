package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"estatetoken/internal/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
}

func parseBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse response body: %v", err)
	}
	return result
}

func TestPipelineAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		keys       string
		presented  string
		wantStatus int
		wantCode   string
	}{
		{name: "current key", keys: "scheduler-key", presented: "scheduler-key", wantStatus: http.StatusOK},
		{name: "rotated key still accepted", keys: "new-key, old-key", presented: "old-key", wantStatus: http.StatusOK},
		{name: "new key accepted", keys: "new-key,old-key", presented: "new-key", wantStatus: http.StatusOK},
		{name: "wrong key", keys: "scheduler-key", presented: "reward-feed", wantStatus: http.StatusUnauthorized, wantCode: "INVALID_API_KEY"},
		{name: "missing header", keys: "scheduler-key", wantStatus: http.StatusUnauthorized, wantCode: "INVALID_API_KEY"},
		{name: "prefix of key", keys: "scheduler-key", presented: "scheduler", wantStatus: http.StatusUnauthorized, wantCode: "INVALID_API_KEY"},
		{name: "separator is not a key", keys: "a-key,b-key", presented: "a-key,b-key", wantStatus: http.StatusUnauthorized, wantCode: "INVALID_API_KEY"},
		{name: "not configured", keys: "", presented: "scheduler-key", wantStatus: http.StatusServiceUnavailable, wantCode: "PIPELINE_NOT_CONFIGURED"},
		{name: "only separators configured", keys: " , ,", presented: "", wantStatus: http.StatusServiceUnavailable, wantCode: "PIPELINE_NOT_CONFIGURED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			r := gin.New()
			r.POST("/pipeline/candles/aggregate", PipelineAuthMiddleware(tt.keys), func(c *gin.Context) {
				reached = true
				c.JSON(http.StatusOK, gin.H{"candles": 0})
			})

			req := httptest.NewRequest(http.MethodPost, "/pipeline/candles/aggregate", http.NoBody)
			if tt.presented != "" {
				req.Header.Set(apiKeyHeader, tt.presented)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if reached != (tt.wantStatus == http.StatusOK) {
				t.Errorf("handler reached = %v", reached)
			}
			if tt.wantCode != "" {
				errObj, ok := parseBody(t, rec)["error"].(map[string]interface{})
				if !ok {
					t.Fatal("expected error object in response")
				}
				if errObj["code"] != tt.wantCode {
					t.Errorf("error code = %v, want %s", errObj["code"], tt.wantCode)
				}
			}
		})
	}
}
