package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins  []string
	AllowAllOrigins bool
	MaxAge          int // preflight cache in seconds; 0 omits the header
}

// CORS returns a middleware that handles Cross-Origin Resource Sharing.
// Requests from origins outside the allow-list get no CORS headers, so
// browsers block them; same-origin and non-browser clients are unaffected.
func CORS(config CORSConfig) gin.HandlerFunc {
	// A "*" entry means any origin, answered with the wildcard and no credentials.
	for _, o := range config.AllowedOrigins {
		if strings.TrimSpace(o) == "*" {
			config.AllowAllOrigins = true
			break
		}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		if !IsOriginAllowed(origin, config) {
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.Next()
			return
		}

		if config.AllowAllOrigins {
			// Credentials cannot be combined with a wildcard origin
			h.Set("Access-Control-Allow-Origin", "*")
		} else {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		}
		h.Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Authorization, Origin, Cache-Control, X-Requested-With")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Expose-Headers", "Content-Length, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			if config.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(config.MaxAge))
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// IsOriginAllowed checks if an origin is allowed based on the configuration
func IsOriginAllowed(origin string, config CORSConfig) bool {
	if config.AllowAllOrigins {
		return true
	}

	origin = strings.TrimSuffix(origin, "/")
	for _, allowedOrigin := range config.AllowedOrigins {
		if strings.TrimSpace(allowedOrigin) == "*" || strings.EqualFold(origin, strings.TrimSuffix(allowedOrigin, "/")) {
			return true
		}
	}

	return false
}
