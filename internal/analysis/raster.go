package analysis

import (
	"context"
	"encoding/base64"
	"image"
	"image/draw"
	"image/png"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/geonorge/dokanalyse/internal/adapter"
)

// rasterResult builds the WMS GetMap URL showing the winning layer(s).
func rasterResult(wmsURL string, layers []string) string {
	if wmsURL == "" || len(layers) == 0 {
		return ""
	}
	return wmsURL + "&layers=" + strings.Join(layers, ",")
}

func legendURL(wmsURL, layer string) string {
	return wmsURL + "service=WMS&version=1.3.0&request=GetLegendGraphic&sld_version=1.1.0&layer=" +
		strings.TrimSpace(layer) + "&format=image/png"
}

// cartography resolves the legend for the winning layers: a single layer
// links straight to its GetLegendGraphic URL, multiple layers are fetched
// and stacked into one inline data URI.
func (a *run) cartography(ctx context.Context, layers []string) string {
	if a.ds.WMS == "" || len(layers) == 0 {
		return ""
	}
	if len(layers) == 1 {
		return legendURL(a.ds.WMS, layers[0])
	}

	urls := make([]string, 0, len(layers))
	for _, layer := range layers {
		urls = append(urls, legendURL(a.ds.WMS, layer))
	}

	merged, err := mergeLegends(ctx, a.runner.client, urls)
	if err != nil {
		zap.L().Warn("analysis: legend merge failed",
			zap.String("dataset", a.ds.Name), zap.Error(err))
		return urls[0]
	}
	return merged
}

// mergeLegends stacks the legend images vertically on a transparent canvas
// and returns the combined image as a png data URI.
func mergeLegends(ctx context.Context, client *adapter.Client, urls []string) (string, error) {
	images := make([]image.Image, 0, len(urls))

	for _, u := range urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return "", err
		}
		body, status, err := client.Do(req)
		if status != adapter.StatusOK {
			if err != nil {
				return "", err
			}
			continue
		}
		img, err := png.Decode(strings.NewReader(string(body)))
		if err != nil {
			continue
		}
		images = append(images, img)
	}

	if len(images) == 0 {
		return "", errNoLegends
	}

	var width, height int
	for _, img := range images {
		if w := img.Bounds().Dx(); w > width {
			width = w
		}
		height += img.Bounds().Dy()
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	y := 0
	for _, img := range images {
		h := img.Bounds().Dy()
		draw.Draw(canvas, image.Rect(0, y, img.Bounds().Dx(), y+h), img, img.Bounds().Min, draw.Over)
		y += h
	}

	var buf strings.Builder
	buf.WriteString("data:image/png;base64,")
	enc := base64.NewEncoder(base64.StdEncoding, &buf)
	if err := png.Encode(enc, canvas); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
