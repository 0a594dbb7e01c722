// Package site serves the embedded landing page at the root path.
package site

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

// Register attaches the landing page to the router's root path. It is
// registered last so API routes keep precedence.
func Register(_ context.Context, r *mux.Router) {
	if r == nil {
		panic("router is nil")
	}

	files := http.FileServer(FS())
	r.PathPrefix("/").Handler(files).Methods(http.MethodGet)
}
