package telemetry

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// GinMiddleware starts a server span per request, continuing any incoming
// trace context. Health probes are not traced.
func GinMiddleware() gin.HandlerFunc {
	return otelgin.Middleware("eventdesk", otelgin.WithFilter(notProbe))
}

func notProbe(r *http.Request) bool {
	return r.URL.Path != "/health" && r.URL.Path != "/ready"
}
