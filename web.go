package monitor

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed web
var webFS embed.FS

// WebDir is the directory served in live mode.
const WebDir = "web"

// WebAssets returns the web application, from disk when live is set.
func WebAssets(live bool) (fs.FS, error) {
	if live {
		return os.DirFS(WebDir), nil
	}
	return fs.Sub(webFS, WebDir)
}
