package httpapi

import (
	"net"
	"net/http"
	"strconv"
)

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func isLocal(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return host == "127.0.0.1" || host == "::1" || host == "localhost"
}

// localOnly rejects requests that do not come from the loopback interface.
func localOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !isLocal(r) {
			WriteError(w, r, http.StatusForbidden, CodeForbidden, "only available from localhost")
			return
		}
		h(w, r)
	}
}
