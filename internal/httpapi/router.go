package httpapi

import (
	"github.com/go-chi/chi/v5"
)

// NewMux returns the bare route table without middleware. Tests use it to
// avoid noisy access logs.
func NewMux() *chi.Mux {
	return NewMuxWithOptions(Options{})
}

func NewMuxWithOptions(opt Options) *chi.Mux {
	opt = opt.withDefaults()
	r := chi.NewRouter()
	registerRoutes(r, opt)
	return r
}

func registerRoutes(r chi.Router, opt Options) {
	h := convertHandler{opt: opt}

	r.Get("/", handleIndex)
	r.Get("/healthz", handleHealthz)
	r.Get("/metrics", handleMetrics)
	r.Get("/sub", h.handleSub)
	r.Post("/api/convert", h.handleConvert)
}
