package http

import (
	_ "embed"
	"net/http"

	"github.com/arrstack/gatearr/pkg/httpx"
)

//go:embed login.html
var loginPage []byte

// LoginPageHandler serves the embedded login form. The page posts to the
// JSON login endpoint and then follows its redirect query parameter.
func LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.NoCache(w)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(loginPage)
	}
}
