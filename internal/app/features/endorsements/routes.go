// internal/app/features/endorsements/routes.go
package endorsements

import "github.com/go-chi/chi/v5"

// Routes returns the endorsement subrouter; mount under /endorsements
// behind the signed-in middleware.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/quota", h.Quota)
	r.Post("/{id}/revoke", h.Revoke)
	return r
}
