package handlers

import (
	"net/http"
	"strings"
)

// AuthCookieName carries the signed identity token.
const AuthCookieName = "auth_token"

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	for _, part := range strings.Split(cookieHeader, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && name == cookieName {
			return value
		}
	}
	return ""
}

// requestToken returns the identity token from the auth cookie, falling back
// to the "token" query parameter.
func requestToken(r *http.Request) string {
	if tok := extractCookieToken(r.Header.Get("Cookie"), AuthCookieName); tok != "" {
		return tok
	}
	return r.URL.Query().Get("token")
}
