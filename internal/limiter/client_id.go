package limiter

import (
	"fmt"
	"hash/fnv"
	"net"
	"net/http"
	"sort"
	"strings"
)

// ClientID resolves a stable identity for the request: the first hop of a
// forwarded-for chain, then the direct connection address, then a hash of
// the headers that are present. Unidentifiable clients share one degraded
// bucket instead of bypassing the limiter.
func ClientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}

	if r.RemoteAddr != "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err == nil && host != "" {
			return host
		}
		return r.RemoteAddr
	}

	return headerFingerprint(r.Header)
}

func headerFingerprint(h http.Header) string {
	keys := make([]string, 0, len(h))
	for key := range h {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	sum := fnv.New64a()
	for _, key := range keys {
		sum.Write([]byte(key))
		for _, val := range h[key] {
			sum.Write([]byte(val))
		}
	}
	return fmt.Sprintf("anon-%x", sum.Sum64())
}
