package registry

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// SuitabilityScore is one 0-5 suitability rating from the DOK status
// register, mapped to a quality dimension.
type SuitabilityScore struct {
	QualityDimensionID   string `json:"qualityDimensionId"`
	QualityDimensionName string `json:"qualityDimensionName"`
	Value                int    `json:"value"`
	Comment              string `json:"comment"`
}

// DOKStatus holds a dataset's suitability ratings.
type DOKStatus struct {
	DatasetID   string             `json:"datasetId"`
	Suitability []SuitabilityScore `json:"suitability"`
}

// Only these register categories feed quality dimensions.
var dokStatusCategories = map[string]struct{ id, name string }{
	"BuildingMatter":              {"egnethet_byggesak", "Byggesak"},
	"MunicipalLandUseElementPlan": {"egnethet_kommuneplan", "Kommuneplan"},
	"ZoningPlan":                  {"egnethet_reguleringsplan", "Reguleringsplan"},
}

var dokStatusComments = map[int]string{
	0: "Ikke egnet",
	1: "Dårlig egnet",
	2: "Noe egnet",
	3: "Egnet",
	4: "Godt egnet",
	5: "Svært godt egnet",
}

type dokStatusResponse struct {
	ContainedItems []struct {
		MetadataURL string          `json:"MetadataUrl"`
		Suitability map[string]int  `json:"Suitability"`
	} `json:"containeditems"`
}

// GetDOKStatus returns the suitability ratings for one dataset, or nil if
// the register has no entry for it.
func (s *Service) GetDOKStatus(ctx context.Context, datasetID string) (*DOKStatus, error) {
	all, err := s.getAllDOKStatus(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].DatasetID == datasetID {
			return &all[i], nil
		}
	}
	return nil, nil
}

func (s *Service) getAllDOKStatus(ctx context.Context) ([]DOKStatus, error) {
	raw, err := s.cache.GetOrFetch(ctx, s.cfg.DokStatusAPI, s.ttlDays, func(ctx context.Context) ([]byte, error) {
		return s.fetchJSON(ctx, s.cfg.DokStatusAPI)
	})
	if err != nil {
		return nil, eris.Wrap(err, "registry: get dok status")
	}

	var resp dokStatusResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, eris.Wrap(err, "registry: decode dok status")
	}

	statuses := make([]DOKStatus, 0, len(resp.ContainedItems))
	for _, item := range resp.ContainedItems {
		parts := strings.Split(item.MetadataURL, "/")

		var suitability []SuitabilityScore
		for category, value := range item.Suitability {
			dim, relevant := dokStatusCategories[category]
			if !relevant {
				continue
			}
			suitability = append(suitability, SuitabilityScore{
				QualityDimensionID:   dim.id,
				QualityDimensionName: dim.name,
				Value:                value,
				Comment:              dokStatusComments[value],
			})
		}

		statuses = append(statuses, DOKStatus{
			DatasetID:   parts[len(parts)-1],
			Suitability: suitability,
		})
	}
	return statuses, nil
}
