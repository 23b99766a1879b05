package api

import (
	"fmt"
	"net/http"
)

// requireQueryParam reads a required, non-empty query parameter or writes a
// 400 and reports failure to the caller.
func requireQueryParam(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		writeInvalidArgument(w, fmt.Sprintf("%s: must not be empty", key))
		return "", false
	}
	return v, true
}
