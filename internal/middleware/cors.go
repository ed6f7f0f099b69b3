package middleware

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig holds CORS configuration options.
type CORSConfig struct {
	// AllowedOrigins lists exact origins ("https://app.example.com"),
	// subdomain patterns ("https://*.example.com" or "*.example.com")
	// or "*". An empty list denies every cross-origin request.
	AllowedOrigins []string

	AllowedMethods []string
	AllowedHeaders []string
	// ExposedHeaders are readable by browser scripts.
	ExposedHeaders []string

	// AllowCredentials is ignored when AllowedOrigins contains "*".
	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

// DefaultCORSConfig returns production-safe CORS defaults.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
			"X-Request-ID",
			"Accept",
			"Accept-Language",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			"Retry-After",
		},
		MaxAge: 86400,
	}
}

// originPattern matches one configured origin entry.
type originPattern struct {
	scheme string // empty matches any scheme
	host   string // host[:port], or the suffix after "*." for wildcards
	suffix bool
}

func (p originPattern) match(scheme, host string) bool {
	if p.scheme != "" && p.scheme != scheme {
		return false
	}
	if !p.suffix {
		return host == p.host
	}
	return strings.HasSuffix(host, "."+p.host)
}

// corsPolicy is the compiled form of a CORSConfig.
type corsPolicy struct {
	any         bool
	exact       map[string]bool
	patterns    []originPattern
	methods     []string
	methodsStr  string
	headersStr  string
	exposedStr  string
	maxAgeStr   string
	credentials bool
}

func compileCORS(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		exact:      make(map[string]bool, len(cfg.AllowedOrigins)),
		methods:    cfg.AllowedMethods,
		methodsStr: strings.Join(cfg.AllowedMethods, ", "),
		headersStr: strings.Join(cfg.AllowedHeaders, ", "),
		exposedStr: strings.Join(cfg.ExposedHeaders, ", "),
	}
	if cfg.MaxAge > 0 {
		p.maxAgeStr = strconv.Itoa(cfg.MaxAge)
	}

	for _, raw := range cfg.AllowedOrigins {
		entry := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case entry == "":
			continue
		case entry == "*":
			p.any = true
		case strings.Contains(entry, "*."):
			scheme, rest, found := strings.Cut(entry, "://")
			if !found {
				scheme, rest = "", entry
			}
			p.patterns = append(p.patterns, originPattern{
				scheme: scheme,
				host:   strings.TrimPrefix(rest, "*."),
				suffix: true,
			})
		default:
			p.exact[strings.TrimSuffix(entry, "/")] = true
		}
	}
	p.credentials = cfg.AllowCredentials && !p.any
	return p
}

func (p *corsPolicy) allows(origin string) bool {
	if p.any {
		return true
	}
	normalized := strings.ToLower(origin)
	if p.exact[normalized] {
		return true
	}
	if len(p.patterns) == 0 {
		return false
	}

	u, err := url.Parse(normalized)
	if err != nil || u.Host == "" {
		return false
	}
	for _, pat := range p.patterns {
		if pat.match(u.Scheme, u.Host) {
			return true
		}
	}
	return false
}

// CORS returns a middleware that handles Cross-Origin Resource Sharing,
// including preflight OPTIONS requests. Requests from origins outside the
// policy pass through without CORS headers, so the browser blocks them;
// their preflights get 403.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	policy := compileCORS(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			if !policy.allows(origin) {
				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if preflight && !slices.Contains(policy.methods, r.Header.Get("Access-Control-Request-Method")) {
				w.WriteHeader(http.StatusForbidden)
				return
			}

			h.Set("Access-Control-Allow-Origin", origin)
			if policy.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if policy.exposedStr != "" {
				h.Set("Access-Control-Expose-Headers", policy.exposedStr)
			}

			if r.Method == http.MethodOptions {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				h.Set("Access-Control-Allow-Methods", policy.methodsStr)
				h.Set("Access-Control-Allow-Headers", policy.headersStr)
				if policy.maxAgeStr != "" {
					h.Set("Access-Control-Max-Age", policy.maxAgeStr)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
