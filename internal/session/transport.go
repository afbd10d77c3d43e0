// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"net/http"
	"time"
)

// Transport carries the session reference between client and gateway.
type Transport interface {
	// Ref extracts the reference the client presented, or "".
	Ref(r *http.Request) string
	// Emit hands a newly created session to the client.
	Emit(w http.ResponseWriter, s Session)
}

// CookieTransport uses an HttpOnly cookie plus a script-readable flag cookie.
type CookieTransport struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

const activeFlagCookie = "sessionActive"

func (t CookieTransport) Ref(r *http.Request) string {
	c, err := r.Cookie(t.Name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (t CookieTransport) Emit(w http.ResponseWriter, s Session) {
	maxAge := int(t.MaxAge / time.Second)
	http.SetCookie(w, &http.Cookie{
		Name:     t.Name,
		Value:    s.ID,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   t.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     activeFlagCookie,
		Value:    "1",
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   t.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// HeaderTransport reads the reference from a request header and echoes new
// sessions in the response header of the same name.
type HeaderTransport struct {
	Name string
}

func (t HeaderTransport) Ref(r *http.Request) string {
	return r.Header.Get(t.Name)
}

func (t HeaderTransport) Emit(w http.ResponseWriter, s Session) {
	w.Header().Set(t.Name, s.ID)
}

// NewTransport returns the transport named by kind ("cookie" or "header").
func NewTransport(kind, cookieName, headerName string, secure bool, ttl time.Duration) Transport {
	if kind == "header" {
		return HeaderTransport{Name: headerName}
	}
	return CookieTransport{Name: cookieName, Secure: secure, MaxAge: ttl}
}
