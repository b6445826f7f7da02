package http

import (
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

const maxFlashLength = 200

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// redirectWithMessage sends a 303 to target carrying a flash message in the
// query string.
func redirectWithMessage(w http.ResponseWriter, r *http.Request, target, message string) {
	if message != "" {
		target += "?" + url.Values{"message": {message}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// flashMessage reads the message set by redirectWithMessage.
func flashMessage(r *http.Request) string {
	msg := sanitizeInput(r.URL.Query().Get("message"))
	if utf8.RuneCountInString(msg) > maxFlashLength {
		msg = string([]rune(msg)[:maxFlashLength])
	}
	return msg
}
