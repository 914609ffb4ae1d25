// internal/app/features/verification/routes.go
package verification

import "github.com/go-chi/chi/v5"

// Routes returns the staff verification subrouter; mount under
// /verification behind the signed-in middleware. The staff check itself
// happens per-handler.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/geder", h.PromoteGeDer)
	r.Post("/quota/{gederID}/suspend", h.SuspendQuota)
	r.Post("/quota/{gederID}/reinstate", h.ReinstateQuota)
	return r
}
