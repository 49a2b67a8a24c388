// Package registry fetches and caches the Geonorge registries the analysis
// depends on: dataset metadata (Kartkatalog), guidance texts (Geolett), the
// municipal DOK dataset list, DOK suitability status and the coverage
// codelist, plus municipality lookup through the administrative units WFS.
package registry

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/geonorge/dokanalyse/internal/adapter"
	"github.com/geonorge/dokanalyse/internal/cache"
	"github.com/geonorge/dokanalyse/internal/config"
)

// Service resolves registry data through the on-disk cache.
type Service struct {
	cfg             config.RegistryConfig
	client          *adapter.Client
	wfs             *adapter.WFS
	cache           *cache.Cache
	ttlDays         int
	localGeolettDir string
}

func NewService(cfg config.RegistryConfig, client *adapter.Client, c *cache.Cache, ttlDays int, localGeolettDir string) *Service {
	return &Service{
		cfg:             cfg,
		client:          client,
		wfs:             adapter.NewWFS(client),
		cache:           c,
		ttlDays:         ttlDays,
		localGeolettDir: localGeolettDir,
	}
}

// fetchJSON gets a registry URL and returns the raw body, used as the cache
// fill function for every registry endpoint.
func (s *Service) fetchJSON(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: create request %s", url)
	}
	req.Header.Set("Accept", "application/json")

	body, status, err := s.client.Do(req)
	if status != adapter.StatusOK {
		if err == nil {
			err = eris.Errorf("registry: fetch %s failed", url)
		}
		return nil, err
	}
	return body, nil
}
