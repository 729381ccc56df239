package request

import (
	"net"
	"net/http"
	"strings"
)

// FindClientIP resolves the client IP, honoring forwarding headers set
// by the reverse proxy.
func FindClientIP(r *http.Request) string {
	headers := []string{"X-Forwarded-For", "X-Real-Ip"}
	for _, header := range headers {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		// The first address is the originating client.
		addresses := strings.Split(value, ",")
		address := strings.TrimSpace(addresses[0])
		if net.ParseIP(address) != nil {
			return address
		}
	}
	return dropPort(r.RemoteAddr)
}

func dropPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
