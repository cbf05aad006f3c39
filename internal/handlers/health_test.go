package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microcom/cyberquest/pkg/catalog"
	"github.com/microcom/cyberquest/pkg/storage"
)

func TestHealthHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	cat, err := catalog.Parse("quiz.json", []byte(handlerQuizJSON))
	require.NoError(t, err)

	t.Run("healthy", func(t *testing.T) {
		handler := NewHealthHandler(storage.NewMemoryStore(), cat, logger)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "cyberquest", resp.Service)
		assert.Equal(t, "healthy", resp.Components["session_store"])

		catInfo, ok := resp.Components["catalog"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "Handler Quiz", catInfo["name"])
		assert.Equal(t, float64(2), catInfo["items"])
	})

	t.Run("degraded when store ping fails", func(t *testing.T) {
		store := storage.NewMockStore()
		store.SetPingError(errors.New("connection refused"))
		handler := NewHealthHandler(store, cat, logger)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "unhealthy", resp.Components["session_store"])
	})
}
