// Package openapi publishes an OpenAPI 3 description of the routes registered
// on the server.
package openapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
)

var documentedMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true,
}

// Generator derives the document from the live route table, so handlers only
// have to register routes to show up in it.
type Generator struct {
	routes  func() []*echo.Route
	version string
	baseURL string
	prefix  string
}

// NewGenerator documents every route of e below prefix (e.g. "/api/v1").
func NewGenerator(e *echo.Echo, prefix, version, baseURL string) *Generator {
	return &Generator{routes: e.Routes, prefix: prefix, version: version, baseURL: baseURL}
}

func (g *Generator) GenerateSpec() map[string]interface{} {
	routes := g.routes()
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})

	paths := make(map[string]map[string]interface{})
	tagSet := make(map[string]bool)
	for _, r := range routes {
		if !documentedMethods[r.Method] || !strings.HasPrefix(r.Path, g.prefix+"/") {
			continue
		}
		path, params := convertPath(r.Path)
		tag := tagFor(strings.TrimPrefix(r.Path, g.prefix))
		tagSet[tag] = true

		if paths[path] == nil {
			paths[path] = make(map[string]interface{})
		}
		paths[path][strings.ToLower(r.Method)] = g.operation(r, tag, params)
	}

	tags := make([]map[string]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, map[string]string{"name": t})
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i]["name"] < tags[j]["name"] })

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "OPTM Health Progress API",
			"version":     g.version,
			"description": "Patient snapshots and comparative progress analysis",
		},
		"servers": []map[string]string{{"url": g.baseURL}},
		"tags":    tags,
		"paths":   paths,
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]string{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
			"schemas": map[string]interface{}{
				"Error": map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{"message": map[string]string{"type": "string"}},
				},
			},
		},
		"security": []map[string][]string{{"bearerAuth": {}}},
	}
}

func (g *Generator) operation(r *echo.Route, tag string, params []string) map[string]interface{} {
	op := map[string]interface{}{
		"operationId": operationID(r),
		"tags":        []string{tag},
		"responses":   responsesFor(r.Method),
	}
	if len(params) > 0 {
		ps := make([]map[string]interface{}, 0, len(params))
		for _, p := range params {
			ps = append(ps, map[string]interface{}{
				"name":     p,
				"in":       "path",
				"required": true,
				"schema":   map[string]string{"type": "string"},
			})
		}
		op["parameters"] = ps
	}
	if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
		op["requestBody"] = map[string]interface{}{
			"required": true,
			"content":  map[string]interface{}{"application/json": map[string]interface{}{"schema": map[string]string{"type": "object"}}},
		}
	}
	return op
}

func responsesFor(method string) map[string]interface{} {
	errRef := map[string]interface{}{
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": map[string]string{"$ref": "#/components/schemas/Error"}},
		},
	}
	withDesc := func(desc string) map[string]interface{} {
		out := map[string]interface{}{"description": desc}
		for k, v := range errRef {
			out[k] = v
		}
		return out
	}

	resp := map[string]interface{}{
		"401": withDesc("Unauthorized"),
		"403": withDesc("Forbidden"),
	}
	switch method {
	case http.MethodPost:
		resp["201"] = map[string]string{"description": "Created"}
		resp["200"] = map[string]string{"description": "Success"}
		resp["400"] = withDesc("Invalid request")
	case http.MethodDelete:
		resp["204"] = map[string]string{"description": "Deleted"}
		resp["404"] = withDesc("Not found")
	default:
		resp["200"] = map[string]string{"description": "Success"}
		resp["404"] = withDesc("Not found")
	}
	return resp
}

// convertPath turns echo's /patients/:patient_id into /patients/{patient_id}.
func convertPath(path string) (string, []string) {
	segments := strings.Split(path, "/")
	var params []string
	for i, s := range segments {
		if strings.HasPrefix(s, ":") {
			params = append(params, s[1:])
			segments[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(segments, "/"), params
}

// tagFor groups operations by their first path segment.
func tagFor(path string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if seg == "" {
		return "default"
	}
	return seg
}

// operationID derives an id from the handler name echo recorded, e.g.
// ".../optm.(*Handler).AnalyzePatient-fm" becomes "AnalyzePatient".
func operationID(r *echo.Route) string {
	name := r.Name
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	if name == "" || strings.HasPrefix(name, "func") {
		name = strings.ToLower(r.Method) + strings.NewReplacer("/", "_", ":", "").Replace(r.Path)
	}
	return name
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>OPTM Health API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({ url: "/openapi.json", dom_id: "#swagger-ui" })
  </script>
</body>
</html>`

// RegisterRoutes serves the document at /openapi.json and a Swagger UI at /docs.
func (g *Generator) RegisterRoutes(e *echo.Echo) {
	e.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, g.GenerateSpec())
	})
	e.GET("/docs", func(c echo.Context) error {
		return c.HTML(http.StatusOK, swaggerUIHTML)
	})
}
