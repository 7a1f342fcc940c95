package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"video-batcher/internal/http-server/handler/batch"

	"github.com/stretchr/testify/assert"
	"github.com/wb-go/wbf/zlog"
)

func TestSetupRouter(t *testing.T) {
	zlog.Init()
	r := SetupRouter(&Handler{BatchHandler: batch.NewBatchHandler(nil, 0, &zlog.Logger)})

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/health", http.StatusOK},
		{http.MethodGet, "/api/unknown", http.StatusNotFound},
		{http.MethodPut, "/api/health", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/batches/b1/archives/x", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
