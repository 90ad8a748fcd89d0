package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wyfcoding/revmgmt/xerrors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(h gin.HandlerFunc) (*httptest.ResponseRecorder, Body) {
	r := gin.New()
	r.GET("/", h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var body Body
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestSuccess(t *testing.T) {
	w, body := serve(func(c *gin.Context) { Success(c, gin.H{"ok": true}) })
	if w.Code != http.StatusOK || body.Code != 0 || body.Msg != "success" {
		t.Errorf("code=%d body=%+v", w.Code, body)
	}
	if body.Time == 0 {
		t.Errorf("timestamp missing")
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"domain error", xerrors.ErrFaresNotDecreasing.Clone(), http.StatusBadRequest, 400103},
		{"wrapped domain error", errors.Join(errors.New("ctx"), xerrors.ErrTimeout.Clone()), http.StatusGatewayTimeout, 504001},
		{"grpc status", status.Error(codes.Unavailable, "down"), http.StatusServiceUnavailable, http.StatusServiceUnavailable},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := serve(func(c *gin.Context) { Error(c, tt.err) })
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if body.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", body.Code, tt.wantCode)
			}
		})
	}
}
