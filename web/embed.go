// Package web holds the server-rendered templates and static assets.
package web

import "embed"

// TemplatesFS holds the page templates; base.html defines the shared
// "head" and "foot" blocks.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

//go:embed static/*
var StaticFS embed.FS
