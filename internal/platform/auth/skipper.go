package auth

import "github.com/labstack/echo/v4"

// publicPaths bypass authentication and tenant resolution.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/db":    true,
	"/metrics":      true,
	"/openapi.json": true,
	"/docs":         true,
}

// AuthSkipper reports whether the matched route is a public endpoint.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

func IsPublicPath(path string) bool {
	return publicPaths[path]
}
