package middleware

import (
	"net"

	"golang.org/x/net/netutil"
)

// LimitListener wraps l so that Accept blocks once max connections are
// concurrently open, enforcing --http.max-concurrent-connections at the
// accept boundary rather than inside request handling.
func LimitListener(l net.Listener, max int) net.Listener {
	if max <= 0 {
		return l
	}
	return netutil.LimitListener(l, max)
}
