package panel

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
)

//go:embed web
var embedded embed.FS

// Assets returns the dashboard file system: dir when it names an existing
// directory, otherwise the embedded copy.
func Assets(dir string) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}
	sub, err := fs.Sub(embedded, "web")
	if err != nil {
		panic(fmt.Sprintf("panel: embedded assets missing: %v", err))
	}
	return sub
}

// Handler serves the dashboard from Assets(dir). Mount it behind
// http.StripPrefix when it does not live at the root.
func Handler(dir string) http.Handler {
	assets := Assets(dir)
	files := http.FileServerFS(assets)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		w.Header().Set("X-Content-Type-Options", "nosniff")

		name := path.Clean("/" + r.URL.Path)[1:]
		if name != "" {
			if _, err := fs.Stat(assets, name); err != nil {
				// Unknown path: serve the page itself.
				r2 := r.Clone(r.Context())
				r2.URL.Path = "/"
				files.ServeHTTP(w, r2)
				return
			}
		}
		files.ServeHTTP(w, r)
	})
}
