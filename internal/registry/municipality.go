package registry

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/geonorge/dokanalyse/internal/adapter"
	"github.com/geonorge/dokanalyse/internal/geomutil"
)

// Municipality identifies which kommune an area of interest lies in.
type Municipality struct {
	Number string
	Name   string
}

// GetMunicipality resolves the municipality containing the centroid of the
// input geometry through the administrative units WFS.
func (s *Service) GetMunicipality(ctx context.Context, g geom.T, epsg int) (*Municipality, error) {
	x, y, err := geomutil.Centroid(g)
	if err != nil {
		return nil, eris.Wrap(err, "registry: municipality centroid")
	}
	centroid := geom.NewPointFlat(geom.XY, []float64{x, y})

	result, err := s.wfs.GetFeatures(ctx, s.cfg.AdminUnitsWFS, "app:Kommune", "app:område",
		[]string{"app:kommunenummer", "app:kommunenavn"}, centroid, epsg)
	if result.Status != adapter.StatusOK {
		if err == nil {
			err = eris.New("registry: municipality lookup failed")
		}
		return nil, err
	}
	if len(result.Features) == 0 {
		return nil, nil
	}

	props := result.Features[0].Properties
	return &Municipality{
		Number: asString(props["kommunenummer"]),
		Name:   asString(props["kommunenavn"]),
	}, nil
}

// Municipality numbers like "0301" survive coercion as numbers; force the
// canonical four-digit string form back.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%04d", int(t))
	}
	return ""
}
