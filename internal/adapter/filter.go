package adapter

import (
	"github.com/rotisserie/eris"

	"github.com/geonorge/dokanalyse/internal/condition"
	"github.com/geonorge/dokanalyse/internal/config"
)

// FilterFeatures keeps the features a layer's type filter selects. Plain
// attribute filters compare with the shared coercion rule; expression
// filters are evaluated against each feature's properties.
func FilterFeatures(features []Feature, filter *config.TypeFilter) ([]Feature, error) {
	if filter == nil {
		return features, nil
	}

	var out []Feature

	if filter.Expression != "" {
		for _, f := range features {
			ok, err := condition.Evaluate(filter.Expression, f.Properties)
			if err != nil {
				return nil, eris.Wrapf(err, "adapter: type filter %q", filter.Expression)
			}
			if ok {
				out = append(out, f)
			}
		}
		return out, nil
	}

	if filter.Attribute == "" {
		return features, nil
	}

	want := condition.Coerce(filter.Value)
	for _, f := range features {
		if got, ok := f.Properties[filter.Attribute]; ok && condition.ValuesEqual(got, want) {
			out = append(out, f)
		}
	}
	return out, nil
}
