package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// RealIP stores the client address under "real_ip". Proxy headers are checked
// in order: CF-Connecting-IP, the left-most X-Forwarded-For entry, X-Real-IP.
// Unparseable values are skipped and c.ClientIP() is the fallback.
func RealIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("real_ip", resolveIP(c))
		c.Next()
	}
}

func resolveIP(c *gin.Context) string {
	candidates := []string{
		c.GetHeader("CF-Connecting-IP"),
		firstForwarded(c.GetHeader("X-Forwarded-For")),
		c.GetHeader("X-Real-IP"),
	}
	for _, v := range candidates {
		if ip := net.ParseIP(strings.TrimSpace(v)); ip != nil {
			return ip.String()
		}
	}
	return c.ClientIP()
}

func firstForwarded(xff string) string {
	first, _, _ := strings.Cut(xff, ",")
	return first
}
