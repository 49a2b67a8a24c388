package registry

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// DatasetMetadata is the Kartkatalog metadata shown with each result.
type DatasetMetadata struct {
	DatasetID             string `json:"datasetId"`
	Title                 string `json:"title"`
	Description           string `json:"description"`
	Owner                 string `json:"owner"`
	Updated               string `json:"updated"`
	DatasetDescriptionURI string `json:"datasetDescriptionUri"`
}

type kartkatalogResponse struct {
	NorwegianTitle      string `json:"NorwegianTitle"`
	Abstract            string `json:"Abstract"`
	DateUpdated         string `json:"DateUpdated"`
	DateMetadataUpdated string `json:"DateMetadataUpdated"`
	ContactOwner        struct {
		Organization string `json:"Organization"`
	} `json:"ContactOwner"`
}

// GetKartkatalogMetadata looks up a dataset's catalog entry by UUID. A
// missing id gives a nil result, not an error.
func (s *Service) GetKartkatalogMetadata(ctx context.Context, datasetID string) (*DatasetMetadata, error) {
	if datasetID == "" {
		return nil, nil
	}

	url := s.cfg.KartkatalogAPI + datasetID
	raw, err := s.cache.GetOrFetch(ctx, url, s.ttlDays, func(ctx context.Context) ([]byte, error) {
		return s.fetchJSON(ctx, url)
	})
	if err != nil {
		return nil, eris.Wrap(err, "registry: get kartkatalog metadata")
	}

	var resp kartkatalogResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, eris.Wrap(err, "registry: decode kartkatalog metadata")
	}

	updated := resp.DateUpdated
	if updated == "" {
		updated = resp.DateMetadataUpdated
	}

	return &DatasetMetadata{
		DatasetID:             datasetID,
		Title:                 resp.NorwegianTitle,
		Description:           resp.Abstract,
		Owner:                 resp.ContactOwner.Organization,
		Updated:               updated,
		DatasetDescriptionURI: "https://kartkatalog.geonorge.no/metadata/" + datasetID,
	}, nil
}
