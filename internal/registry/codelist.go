package registry

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/geonorge/dokanalyse/internal/cache"
)

// CodelistEntry is one published code value with its display texts.
type CodelistEntry struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// The codelists in use, keyed by the name quality indicators refer to.
var codelistFiles = map[string]string{
	"fullstendighet_dekning": "dekningsstatus.json",
}

type codelistResponse struct {
	ContainedItems []struct {
		CodeValue   string          `json:"codevalue"`
		Label       string          `json:"label"`
		Description string          `json:"description"`
		Status      json.RawMessage `json:"status"`
	} `json:"containeditems"`
}

// GetCodelist returns the published entries of a named codelist. Unknown
// names and unpublished entries give an empty result.
func (s *Service) GetCodelist(ctx context.Context, name string) ([]CodelistEntry, error) {
	file, ok := codelistFiles[name]
	if !ok {
		return nil, nil
	}

	url := s.cfg.CodelistAPI + file
	resp, err := cache.GetJSON[codelistResponse](ctx, s.cache, url, s.ttlDays, func(ctx context.Context) ([]byte, error) {
		return s.fetchJSON(ctx, url)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "registry: get codelist %s", name)
	}

	var entries []CodelistEntry
	for _, item := range resp.ContainedItems {
		if !truthy(item.Status) {
			continue
		}
		entries = append(entries, CodelistEntry{
			Value:       item.CodeValue,
			Label:       item.Label,
			Description: item.Description,
		})
	}
	return entries, nil
}

// The register encodes entry status inconsistently; anything but absent,
// null, false, zero or empty string counts as published.
func truthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	}
	return true
}
