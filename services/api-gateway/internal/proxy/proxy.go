// Package proxy relaie /v1/<service>/... vers /api/<service>/... sur le service en aval.
package proxy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
)

const (
	publicPrefix   = "/v1"
	internalPrefix = "/api"
)

// Route associe un segment public (auth, posts, ...) à l'URL du service.
type Route struct {
	Name     string
	Upstream string
}

type Gateway struct {
	proxies map[string]*httputil.ReverseProxy
	logger  *slog.Logger
}

func New(routes []Route, logger *slog.Logger) (*Gateway, error) {
	g := &Gateway{proxies: make(map[string]*httputil.ReverseProxy, len(routes)), logger: logger}
	for _, r := range routes {
		target, err := url.Parse(r.Upstream)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("route %s: invalid upstream %q", r.Name, r.Upstream)
		}
		g.proxies[r.Name] = g.newProxy(r.Name, target)
	}
	return g, nil
}

func (g *Gateway) newProxy(name string, target *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			path := internalPrefix + strings.TrimPrefix(pr.In.URL.Path, publicPrefix)
			pr.Out.URL.Path = strings.TrimSuffix(target.Path, "/") + path
			pr.Out.URL.RawPath = ""
		},
		ModifyResponse: func(res *http.Response) error {
			g.logger.Info("Response received from upstream", "service", name, "status", res.StatusCode)
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			g.logger.Error("Proxy Error", "service", name, "path", r.URL.Path, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Internal server error"})
		},
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, ok := service(r.URL.Path)
	if p, found := g.proxies[name]; ok && found {
		p.ServeHTTP(w, r)
		return
	}
	http.NotFound(w, r)
}

// service extrait "posts" de "/v1/posts/..." ; faux hors de /v1.
func service(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, publicPrefix+"/")
	if !ok {
		return "", false
	}
	name, _, _ := strings.Cut(rest, "/")
	return name, name != ""
}
