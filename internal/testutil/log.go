package testutil

import (
	"testing"

	config "github.com/mwantia/illustag/internal/config/server"
	"github.com/mwantia/illustag/pkg/log"
)

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// NewLogger returns a debug logger that writes through t.Log.
func NewLogger(t testing.TB) log.LoggerService {
	return log.NewWriterLogger("test", config.LogServerConfig{Level: "debug"}, testWriter{t: t})
}
