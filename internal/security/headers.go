package security

import (
	"net/http"
	"strconv"
)

// Headers sets browser hardening headers on every response. HSTS is only
// emitted on TLS connections; max-age defaults to one year.
type Headers struct {
	Enable                bool
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
}

func (h Headers) hstsValue() string {
	maxAge := h.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = 31536000
	}
	v := "max-age=" + strconv.Itoa(maxAge)
	if h.HSTSIncludeSubdomains {
		v += "; includeSubDomains"
	}
	return v
}

func (h Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Enable {
			hdr := w.Header()
			hdr.Set("X-Content-Type-Options", "nosniff")
			hdr.Set("X-Frame-Options", "DENY")
			hdr.Set("Referrer-Policy", "no-referrer")
			hdr.Set("Permissions-Policy", "geolocation=(), microphone=()")
			if h.EnableHSTS && r.TLS != nil {
				hdr.Set("Strict-Transport-Security", h.hstsValue())
			}
		}
		next.ServeHTTP(w, r)
	})
}
