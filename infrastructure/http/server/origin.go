package server

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy decides which browser origins may open a WebSocket.
// An empty policy only accepts same host requests, like gorilla's default.
type OriginPolicy struct {
	log      *slog.Logger
	allowed  map[string]struct{}
	allowAll bool
}

func NewOriginPolicy(log *slog.Logger, origins []string) *OriginPolicy {
	p := &OriginPolicy{log: log, allowed: make(map[string]struct{})}
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			p.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warn("Ignoring invalid origin in configuration", "origin", origin)
			continue
		}
		p.allowed[normalized] = struct{}{}
	}
	return p
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// Check is used as websocket.Upgrader.CheckOrigin.
func (p *OriginPolicy) Check(r *http.Request) bool {
	originHeader := r.Header.Get("Origin")
	if originHeader == "" {
		// Not a browser
		return true
	}
	if p.allowAll {
		return true
	}

	normalized, ok := normalizeOrigin(originHeader)
	if !ok {
		p.log.Warn("Blocked WebSocket connection with malformed origin", "origin", originHeader)
		return false
	}
	if len(p.allowed) == 0 {
		parsed, _ := url.Parse(normalized)
		if strings.EqualFold(parsed.Host, r.Host) {
			return true
		}
	} else if _, exists := p.allowed[normalized]; exists {
		return true
	}

	p.log.Warn("Blocked WebSocket connection from disallowed origin", "origin", originHeader)
	return false
}
