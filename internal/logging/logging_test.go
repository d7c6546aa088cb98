package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogger(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	h := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/movies?x=1", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "handled request", entry.Message)
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, int64(15), entry.Data["size"])
	assert.Equal(t, "/movies?x=1", entry.Data["uri"])
	assert.Equal(t, http.MethodGet, entry.Data["method"])
	assert.NotContains(t, entry.Data, "trace_id")
}

func TestInitLog(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)
	defer logrus.SetFormatter(&logrus.TextFormatter{})

	InitLog(LogConfig{Level: "debug", Format: "json"})
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)
}
