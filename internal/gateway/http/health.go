package http

import (
	"net/http"

	"github.com/arrstack/gatearr/pkg/httpx"
)

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// HealthHandler always answers 200 while the process is up. The gateway
// holds no state worth probing beyond the listener itself.
func HealthHandler(serviceName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Service: serviceName,
		})
	}
}
