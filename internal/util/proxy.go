package util

import (
	"net/http"
	"net/url"

	"github.com/ppiankov/poseprep/internal/model"
)

// ProxyFunc picks the download proxy from the HTTP config, falling back to
// HTTP_PROXY / HTTPS_PROXY / NO_PROXY when neither is set.
func ProxyFunc(cfg model.HTTPConfig) func(*http.Request) (*url.URL, error) {
	if cfg.HTTPProxy == "" && cfg.HTTPSProxy == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && cfg.HTTPSProxy != "" {
			return url.Parse(cfg.HTTPSProxy)
		}
		if cfg.HTTPProxy != "" {
			return url.Parse(cfg.HTTPProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}
