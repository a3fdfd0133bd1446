package server

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/r9s-ai/x12-mapper/internal/logx"
	"github.com/r9s-ai/x12-mapper/pkg/requestid"
)

type contextFieldSpec struct {
	ctxKey string
	logKey string
}

type accessLogRecord struct {
	RequestID string
	LatencyMS int64
	Extras    map[string]any
}

func (r accessLogRecord) Fields() map[string]any {
	out := make(map[string]any, len(r.Extras)+2)
	if strings.TrimSpace(r.RequestID) != "" {
		out["request_id"] = r.RequestID
	}
	out["latency_ms"] = r.LatencyMS
	for k, v := range r.Extras {
		out[k] = v
	}
	return out
}

var accessLogContextFieldSpecs = []contextFieldSpec{
	{ctxKey: ctxMappingPath, logKey: "mapping_path"},
	{ctxKey: ctxTransactionSet, logKey: "transaction_set"},
	{ctxKey: ctxClient, logKey: "client"},
	{ctxKey: ctxSegmentCount, logKey: "segment_count"},
	{ctxKey: ctxErrorKind, logKey: "error_kind"},
}

func requestIDMiddleware(headerKey string) gin.HandlerFunc {
	headerKey = requestid.ResolveHeaderKey(headerKey)
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerKey))
		if id == "" {
			id = requestid.Gen()
		}
		c.Header(headerKey, id)
		c.Set(headerKey, id)
		c.Next()
	}
}

func requestLoggerWithColor(l *log.Logger, color bool, requestIDHeaderKey string, formatter *logx.AccessLogFormatter) gin.HandlerFunc {
	requestIDHeaderKey = requestid.ResolveHeaderKey(requestIDHeaderKey)
	if l == nil {
		l = log.New(os.Stdout, "", 0)
	}
	if formatter == nil {
		formatter = defaultAccessFormatter()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		rec := buildAccessLogRecord(c, requestIDHeaderKey, latency)
		l.Println(formatter.Format(logx.AccessLogEntry{
			Time:     time.Now(),
			Status:   c.Writer.Status(),
			Latency:  latency,
			ClientIP: c.ClientIP(),
			Method:   c.Request.Method,
			Path:     c.Request.URL.Path,
			Fields:   rec.Fields(),
		}, color))
	}
}

func defaultAccessFormatter() *logx.AccessLogFormatter {
	format, err := logx.ResolveAccessLogFormat("", logx.DefaultAccessLogPreset)
	if err != nil {
		panic(err)
	}
	f, err := logx.CompileAccessLogFormat(format)
	if err != nil {
		panic(err)
	}
	return f
}

func buildAccessLogRecord(c *gin.Context, requestIDHeaderKey string, latency time.Duration) accessLogRecord {
	rec := accessLogRecord{
		RequestID: c.GetString(requestIDHeaderKey),
		LatencyMS: latency.Milliseconds(),
		Extras:    map[string]any{},
	}
	copyContextFieldsBySpec(c, rec.Extras, accessLogContextFieldSpecs)
	return rec
}

func copyContextFieldsBySpec(c *gin.Context, dst map[string]any, specs []contextFieldSpec) {
	for _, s := range specs {
		if v, ok := c.Get(s.ctxKey); ok {
			dst[s.logKey] = v
		}
	}
}
