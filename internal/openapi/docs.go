package openapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/restforge/restforge/internal/api"
)

// redocShell renders the documentation page against the served spec.
const redocShell = `<!DOCTYPE html>
<html>
  <head>
    <title>%s</title>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <style>body { margin: 0; padding: 0; }</style>
  </head>
  <body>
    <redoc spec-url="%s"></redoc>
    <script src="https://cdn.redoc.ly/redoc/latest/bundles/redoc.standalone.js"></script>
  </body>
</html>`

// SpecHandler serves the OpenAPI document as JSON. The document is rendered
// once on first request; the route table never changes after startup.
func SpecHandler(g *Generator, routes []*api.RouteDescriptor, logger *zap.Logger) http.HandlerFunc {
	var once sync.Once
	var body []byte

	return func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			doc := g.Build(routes)
			rendered, err := json.Marshal(doc)
			if err != nil {
				logger.Error("failed to render openapi document", zap.Error(err))
				return
			}
			body = rendered
		})
		if body == nil {
			http.Error(w, "documentation unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write(body)
	}
}

// DocsHandler serves the Redoc shell pointing at the spec path.
func DocsHandler(title, specPath string) http.HandlerFunc {
	page := []byte(fmt.Sprintf(redocShell, title, specPath))
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	}
}
