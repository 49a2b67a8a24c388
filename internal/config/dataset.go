package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// SourceKind identifies which protocol a dataset is queried over.
type SourceKind string

const (
	SourceWFS    SourceKind = "wfs"
	SourceArcGIS SourceKind = "arcgis"
	SourceOGCAPI SourceKind = "ogc_api"
)

// DatasetConfig describes one DOK dataset: where to query it, which layers
// to try, how to map its properties and which quality rules apply.
type DatasetConfig struct {
	Name              string                   `yaml:"-"`
	DatasetID         string                   `yaml:"dataset_id"`
	Title             string                   `yaml:"title"`
	Themes            []string                 `yaml:"themes"`
	WFS               string                   `yaml:"wfs"`
	ArcGIS            string                   `yaml:"arcgis"`
	OGCAPI            string                   `yaml:"ogc_api"`
	WMS               string                   `yaml:"wms"`
	Namespace         string                   `yaml:"namespace"`
	GeomField         string                   `yaml:"geom_field"`
	Properties        []string                 `yaml:"properties"`
	Layers            []LayerConfig            `yaml:"layers"`
	QualityIndicators []QualityIndicatorConfig `yaml:"quality_indicators"`
}

// SourceKind derives the protocol from which service URL is set.
func (d *DatasetConfig) SourceKind() SourceKind {
	switch {
	case d.WFS != "":
		return SourceWFS
	case d.ArcGIS != "":
		return SourceArcGIS
	case d.OGCAPI != "":
		return SourceOGCAPI
	}
	return ""
}

// ServiceURL returns the query endpoint for the dataset's protocol.
func (d *DatasetConfig) ServiceURL() string {
	switch d.SourceKind() {
	case SourceWFS:
		return d.WFS
	case SourceArcGIS:
		return d.ArcGIS
	case SourceOGCAPI:
		return d.OGCAPI
	}
	return ""
}

// LayerConfig is one queryable layer within a dataset, tried in order.
type LayerConfig struct {
	WFS          string      `yaml:"wfs"`
	ArcGIS       string      `yaml:"arcgis"`
	OGCAPI       string      `yaml:"ogc_api"`
	TypeFilter   *TypeFilter `yaml:"type_filter"`
	WMS          []string    `yaml:"wms"`
	ResultStatus string      `yaml:"result_status"`
	GeolettID    string      `yaml:"geolett_id"`
}

// LayerName returns the layer identifier for the given protocol.
func (l *LayerConfig) LayerName(kind SourceKind) string {
	switch kind {
	case SourceWFS:
		return l.WFS
	case SourceArcGIS:
		return l.ArcGIS
	case SourceOGCAPI:
		return l.OGCAPI
	}
	return ""
}

// TypeFilter narrows which features of a layer count as hits, either by an
// attribute/value pair or by a boolean expression over feature properties.
type TypeFilter struct {
	Attribute  string `yaml:"attribute"`
	Value      string `yaml:"value"`
	Expression string `yaml:"expression"`
}

// QualityIndicatorConfig is one data-quality rule attached to a dataset.
type QualityIndicatorConfig struct {
	Kind                 string                 `yaml:"type"`
	QualityDimensionID   string                 `yaml:"quality_dimension_id"`
	QualityDimensionName string                 `yaml:"quality_dimension_name"`
	WarningThreshold     string                 `yaml:"warning_threshold"`
	QualityWarningText   string                 `yaml:"quality_warning_text"`
	InputFilter          string                 `yaml:"input_filter"`
	Property             string                 `yaml:"property"`
	WFS                  *CoverageServiceConfig `yaml:"wfs"`
}

// CoverageServiceConfig points a coverage indicator at the WFS layer that
// holds the coverage map.
type CoverageServiceConfig struct {
	URL       string `yaml:"url"`
	Layer     string `yaml:"layer"`
	GeomField string `yaml:"geom_field"`
	Property  string `yaml:"property"`
}

// LoadDatasets reads every dataset definition in dir. Unresolvable
// definitions are logged and skipped rather than surfaced as null results
// downstream.
func LoadDatasets(dir string) ([]*DatasetConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read dataset dir %s", dir)
	}

	var datasets []*DatasetConfig
	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yml" && ext != ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "config: read %s", path)
		}

		var ds DatasetConfig
		if err := yaml.Unmarshal(raw, &ds); err != nil {
			zap.L().Warn("skipping unreadable dataset definition",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		ds.Name = strings.TrimSuffix(entry.Name(), ext)

		if err := ds.validate(); err != nil {
			zap.L().Warn("skipping invalid dataset definition",
				zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		datasets = append(datasets, &ds)
	}

	sort.Slice(datasets, func(i, j int) bool { return datasets[i].Name < datasets[j].Name })
	return datasets, nil
}

func (d *DatasetConfig) validate() error {
	if d.SourceKind() == "" {
		return eris.New("no wfs, arcgis or ogc_api service url")
	}
	if len(d.Layers) == 0 {
		return eris.New("no layers")
	}
	kind := d.SourceKind()
	for i := range d.Layers {
		if d.Layers[i].LayerName(kind) == "" {
			return eris.Errorf("layer %d has no %s layer name", i, kind)
		}
	}
	if kind == SourceWFS && d.GeomField == "" {
		return eris.New("wfs dataset missing geom_field")
	}
	if kind == SourceOGCAPI && d.GeomField == "" {
		return eris.New("ogc_api dataset missing geom_field")
	}
	return nil
}
