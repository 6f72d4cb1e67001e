// SPDX-License-Identifier: MIT

package http

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// UIConfig configures the UI handler
type UIConfig struct {
	// Dir is the built chat UI (index.html plus hashed assets).
	Dir string
	CSP string
}

// UIHandler serves the browser chat UI from a directory. Unknown paths
// without an extension fall back to index.html so client-side routes work.
func UIHandler(cfg UIConfig) http.Handler {
	root := os.DirFS(cfg.Dir)
	fileServer := http.FileServer(http.FS(root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cfg.CSP != "" {
			w.Header().Set("Content-Security-Policy", cfg.CSP)
		}

		// Index.html must not be cached so updates roll out; hashed assets can be.
		p := r.URL.Path
		isDocument := p == "/" || p == "" || p == "/index.html" || !strings.Contains(path.Base(p), ".")
		if isDocument {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}

		if isDocument && p != "/" {
			name := strings.TrimPrefix(path.Clean(p), "/")
			if _, err := fs.Stat(root, name); errors.Is(err, fs.ErrNotExist) {
				r2 := r.Clone(r.Context())
				r2.URL.Path = "/"
				fileServer.ServeHTTP(w, r2)
				return
			}
		}
		fileServer.ServeHTTP(w, r)
	})
}
