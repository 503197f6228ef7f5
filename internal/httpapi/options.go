package httpapi

import "time"

// Options controls HTTP API runtime behavior (timeouts, rate limiting).
//
// Keep it small: this service is a conversion pipeline, not a framework.
type Options struct {
	// ConvertTimeout is the hard upper bound for a single conversion request
	// (fetch + parse + normalize + render + template injection).
	ConvertTimeout time.Duration

	// FetchTimeout is the per-HTTP-request timeout used when fetching remote
	// resources (subscription/profile/template).
	FetchTimeout time.Duration

	// RateLimit is requests per second allowed per client IP. Zero disables
	// rate limiting; NewHandler applies it, NewMux never does.
	RateLimit float64

	// RateBurst is the per-client burst size when RateLimit is active.
	RateBurst int
}

func (o Options) withDefaults() Options {
	if o.ConvertTimeout <= 0 {
		o.ConvertTimeout = 60 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 15 * time.Second
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 20
	}
	return o
}
