package registry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/geonorge/dokanalyse/internal/cache"
)

// GeolettItem is one guidance entry from the Geolett register.
type GeolettItem struct {
	ID               string        `json:"id"`
	Tittel           string        `json:"tittel"`
	ForklarendeTekst string        `json:"forklarendeTekst"`
	Dialogtekst      string        `json:"dialogtekst"`
	MuligeTiltak     string        `json:"muligeTiltak"`
	Lenker           []GeolettLink `json:"lenker"`
}

// GeolettLink is a reference link attached to a guidance entry.
type GeolettLink struct {
	Href   string `json:"href"`
	Tittel string `json:"tittel"`
}

// GetGeolett returns the guidance entry with the given id, or nil when the
// id is empty or unknown. Entries pending publication can be supplied from
// a local override file that shadows the remote register.
func (s *Service) GetGeolett(ctx context.Context, id string) (*GeolettItem, error) {
	if id == "" {
		return nil, nil
	}

	if item := s.localGeolett(id); item != nil {
		return item, nil
	}

	items, err := cache.GetJSON[[]GeolettItem](ctx, s.cache, s.cfg.GeolettAPI, s.ttlDays, func(ctx context.Context) ([]byte, error) {
		return s.fetchJSON(ctx, s.cfg.GeolettAPI)
	})
	if err != nil {
		return nil, eris.Wrap(err, "registry: get geolett")
	}

	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, nil
}

func (s *Service) localGeolett(id string) *GeolettItem {
	if s.localGeolettDir == "" {
		return nil
	}
	raw, err := os.ReadFile(filepath.Join(s.localGeolettDir, "geolett.local.json"))
	if err != nil {
		return nil
	}
	var items []GeolettItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}
