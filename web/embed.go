// Package web embeds the server-rendered templates and static assets.
package web

import (
	"embed"
	"io/fs"
)

//go:embed templates/**/*.html
var Templates embed.FS

//go:embed static/**/*
var static embed.FS

// Static returns the asset tree rooted at static/, ready for http.FS.
func Static() (fs.FS, error) {
	return fs.Sub(static, "static")
}
