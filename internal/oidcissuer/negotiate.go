package oidcissuer

import (
	"html/template"
	"net/http"

	"github.com/elnormous/contenttype"
)

var (
	htmlMediaType  = contenttype.NewMediaType("text/html")
	jsonMediaType  = contenttype.NewMediaType("application/json")
	pageMediaTypes = []contenttype.MediaType{htmlMediaType, jsonMediaType}
)

// wantsJSON reports whether the client prefers JSON over the HTML page.
// A missing Accept header gets HTML.
func wantsJSON(r *http.Request) bool {
	accepted, _, err := contenttype.GetAcceptableMediaType(r, pageMediaTypes)
	if err != nil {
		return false
	}
	return accepted.Subtype == jsonMediaType.Subtype
}

func renderPage(w http.ResponseWriter, status int, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = tmpl.Execute(w, data)
}
