package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	appErrors "github.com/noah-isme/academy-api/pkg/errors"
	"github.com/noah-isme/academy-api/pkg/i18n"
	"github.com/noah-isme/academy-api/pkg/logger"
)

func performError(t *testing.T, catalog *i18n.Catalog, lang string, err error) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Localizer(catalog))
	r.GET("/x", func(c *gin.Context) { Error(c, err) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/x", nil)
	if lang != "" {
		req.Header.Set("Accept-Language", lang)
	}
	r.ServeHTTP(w, req)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestErrorLocalizesMessage(t *testing.T) {
	catalog, err := i18n.New("ar")
	require.NoError(t, err)

	w, env := performError(t, catalog, "en", appErrors.ErrCourseFull)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "COURSE_FULL", env.Error.Code)
	assert.Equal(t, "The course is full.", env.Error.Message)

	_, env = performError(t, catalog, "", appErrors.ErrCourseFull)
	assert.Equal(t, "الكورس مكتمل العدد", env.Error.Message)
}

func TestErrorWithoutCatalogKeepsRawMessage(t *testing.T) {
	w, env := performError(t, nil, "", errors.New("db exploded"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, appErrors.ErrInternal.Message, env.Error.Message)
	assert.NotContains(t, w.Body.String(), "db exploded")
}

func TestErrorHandsInternalCauseToRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(logger.GinMiddleware(zap.New(core)))
	r.GET("/x", func(c *gin.Context) {
		Error(c, appErrors.Internal(errors.New("pq: connection refused"), "failed to load registration"))
	})
	r.GET("/y", func(c *gin.Context) { Error(c, appErrors.ErrCourseFull) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zap.ErrorLevel, entry.Level)
	assert.Contains(t, entry.ContextMap()["errors"], "pq: connection refused")

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/y", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, 2, logs.Len())
	assert.NotContains(t, logs.All()[1].ContextMap(), "errors")
}
