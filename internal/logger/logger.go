package logger

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

func NewZapLog(level string) (*zap.Logger, error) {
	// преобразуем текстовый уровень логирования в zap.AtomicLevel
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zapcfg := zap.NewProductionConfig()
	zapcfg.Level = lvl
	return zapcfg.Build()
}

// middleware-логер для входящих HTTP-запросов
func RequestLogMdlw(h http.Handler, zaplog *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wl := newResponseWriterLogger(w)

		handlerStart := time.Now()
		h.ServeHTTP(wl, r)

		zaplog.Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("code", wl.statusCode),
			zap.Duration("duration", time.Since(handlerStart)),
		)
	})
}

type responseWriterLogger struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriterLogger(w http.ResponseWriter) *responseWriterLogger {
	return &responseWriterLogger{w, http.StatusOK}
}

func (wl *responseWriterLogger) WriteHeader(code int) {
	wl.statusCode = code
	wl.ResponseWriter.WriteHeader(code)
}
