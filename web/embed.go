// Package web holds the HTML templates and static files served by
// internal/http, compiled into the binary.
package web

import "embed"

// TemplatesFS holds layout.html plus one file per page.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS is mounted under /static/.
//
//go:embed static/*
var StaticFS embed.FS
