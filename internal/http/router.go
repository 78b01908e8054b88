package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Health  *HealthHandler
	Admin   *AdminHandler
	Members *MemberHandler
	Metrics http.Handler
	// Instrument wraps each route with its pattern, e.g. for request metrics.
	Instrument func(route string, next http.Handler) http.Handler
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	handle := func(route string, fn http.HandlerFunc) {
		var h http.Handler = fn
		if cfg.Instrument != nil {
			h = cfg.Instrument(route, h)
		}
		mux.Handle(route, h)
	}

	if cfg.Health != nil {
		health := func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				methodNotAllowed(w, http.MethodGet, http.MethodHead)
				return
			}
			cfg.Health.Health(w, r)
		}
		handle("/health", health)
		handle("/", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/" {
				http.NotFound(w, r)
				return
			}
			health(w, r)
		})
	}

	if cfg.Admin != nil {
		handle("/stats", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Admin.Stats(w, r)
		})
		handle("/cache", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Admin.ClearCache(w, r)
		})
		handle("/cache/sweep", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Admin.Sweep(w, r)
		})
	}

	if cfg.Members != nil {
		handle("/members/platform/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/members/platform/")
			if id == "" || strings.Contains(id, "/") {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Members.ByPlatformID(w, r, id)
		})
		handle("/members/email/", func(w http.ResponseWriter, r *http.Request) {
			email := strings.TrimPrefix(r.URL.Path, "/members/email/")
			if email == "" || strings.Contains(email, "/") {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Members.ByEmail(w, r, email)
		})
	}

	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
