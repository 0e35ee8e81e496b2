package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// NewCORSMiddleware はカンマ区切りで指定されたオリジンに対するCORSミドルウェアを返す。
// OAuthのstate Cookieと共存するため、ワイルドカード(*)は使用しない。
// リクエストのOriginが許可リストにあればそのOriginを返し、Originがなければ先頭のオリジンを返す。
// OPTIONSプリフライトリクエストには204で応答する。
func NewCORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	var origins []string
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			if origin := allowOrigin(origins, r.Header.Get("Origin")); origin != "" {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func allowOrigin(origins []string, requested string) string {
	if len(origins) == 0 {
		return ""
	}
	if requested == "" {
		return origins[0]
	}
	if slices.Contains(origins, requested) {
		return requested
	}
	return ""
}
