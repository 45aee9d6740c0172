package cache

import "time"

// SWRMode is a per-call stale-while-revalidate override.
type SWRMode int

const (
	SWRDefault SWRMode = iota // use Config.EnableSWR
	SWROn
	SWROff
)

// CallOptions override cache defaults for a single GetOrSet call.
type CallOptions struct {
	// TTL for the stored result. Zero means Config.DefaultTTL.
	TTL time.Duration

	// ForceRefresh skips the lookup and goes straight to the
	// deduplicated fetch.
	ForceRefresh bool

	// SWR overrides Config.EnableSWR for this call.
	SWR SWRMode
}

// Option configures a GetOrSet call.
type Option func(*CallOptions)

// WithTTL sets the TTL of the stored result.
func WithTTL(ttl time.Duration) Option {
	return func(o *CallOptions) { o.TTL = ttl }
}

// WithForceRefresh bypasses any stored entry.
func WithForceRefresh() Option {
	return func(o *CallOptions) { o.ForceRefresh = true }
}

// WithSWR enables or disables stale-while-revalidate for this call.
func WithSWR(enabled bool) Option {
	return func(o *CallOptions) {
		if enabled {
			o.SWR = SWROn
		} else {
			o.SWR = SWROff
		}
	}
}

func resolveOptions(opts []Option) CallOptions {
	var o CallOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (m SWRMode) resolve(def bool) bool {
	switch m {
	case SWROn:
		return true
	case SWROff:
		return false
	default:
		return def
	}
}
