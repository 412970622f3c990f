package handler

import (
	"crypto/sha256"
	"encoding/hex"
	"html/template"
	"net/http"

	"payquest/pkg/apperror"
	"payquest/pkg/response"

	"github.com/gin-gonic/gin"
)

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
<div id="swagger-ui" data-url="{{.DocURL}}"></div>
<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
SwaggerUIBundle({url: document.getElementById("swagger-ui").dataset.url, dom_id: "#swagger-ui"});
</script>
</body>
</html>`))

// DocsHandler serves the OpenAPI document and a browser viewer for it.
type DocsHandler struct {
	doc    []byte
	etag   string
	docURL string
}

// NewDocsHandler serves doc; docURL is the route the viewer fetches it from.
func NewDocsHandler(doc []byte, docURL string) *DocsHandler {
	h := &DocsHandler{doc: doc, docURL: docURL}
	if len(doc) > 0 {
		sum := sha256.Sum256(doc)
		h.etag = `"` + hex.EncodeToString(sum[:8]) + `"`
	}
	return h
}

// Document handles GET /docs/openapi.yaml.
func (h *DocsHandler) Document(c *gin.Context) {
	if len(h.doc) == 0 {
		response.Error(c, apperror.ErrNotFound("api document"))
		return
	}
	c.Header("ETag", h.etag)
	c.Header("Cache-Control", "public, max-age=300")
	if c.GetHeader("If-None-Match") == h.etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/yaml", h.doc)
}

// Viewer handles GET /docs.
func (h *DocsHandler) Viewer(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	_ = docsPage.Execute(c.Writer, struct{ Title, DocURL string }{"PayQuest API", h.docURL})
}
