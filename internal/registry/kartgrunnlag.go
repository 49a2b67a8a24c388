package registry

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/geonorge/dokanalyse/internal/cache"
)

type kartgrunnlagResponse struct {
	ContainedItems []struct {
		ConfirmedDok string `json:"ConfirmedDok"`
		DokStatus    string `json:"dokStatus"`
		MetadataURL  string `json:"MetadataUrl"`
	} `json:"containeditems"`
}

// GetKartgrunnlag returns the dataset UUIDs officially confirmed as part
// of the municipality's public map base. Only entries both confirmed and
// with an approved DOK status count.
func (s *Service) GetKartgrunnlag(ctx context.Context, municipalityNumber string) ([]string, error) {
	if municipalityNumber == "" {
		return nil, nil
	}

	url := s.cfg.KartgrunnlagAPI + "?municipality=" + municipalityNumber
	resp, err := cache.GetJSON[kartgrunnlagResponse](ctx, s.cache, url, s.ttlDays, func(ctx context.Context) ([]byte, error) {
		return s.fetchJSON(ctx, url)
	})
	if err != nil {
		return nil, eris.Wrap(err, "registry: get kartgrunnlag")
	}

	var ids []string
	for _, item := range resp.ContainedItems {
		if item.ConfirmedDok != "JA" || item.DokStatus != "Godkjent" {
			continue
		}
		parts := strings.Split(item.MetadataURL, "/")
		ids = append(ids, parts[len(parts)-1])
	}
	return ids, nil
}
