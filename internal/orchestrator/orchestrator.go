// Package orchestrator handles one analysis request end to end: it parses
// the input geometry, resolves the municipality, selects the candidate
// datasets and fans out one analysis task per dataset.
package orchestrator

import (
	"context"
	"encoding/json"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/geonorge/dokanalyse/internal/analysis"
	"github.com/geonorge/dokanalyse/internal/config"
	"github.com/geonorge/dokanalyse/internal/geomutil"
	"github.com/geonorge/dokanalyse/internal/registry"
)

// Request is an analysis request from the outer API layer.
type Request struct {
	InputGeometry             json.RawMessage `json:"inputGeometry"`
	RequestedBuffer           float64         `json:"requestedBuffer"`
	Context                   string          `json:"context"`
	Theme                     string          `json:"theme"`
	IncludeGuidance           bool            `json:"includeGuidance"`
	IncludeQualityMeasurement bool            `json:"includeQualityMeasurement"`
	// Both names disable the municipal applicability filter when false.
	IncludeFilterChosenDOK *bool `json:"includeFilterChosenDOK"`
	MunicipalityDokData    *bool `json:"municipalityDokData"`
}

// FilterChosenDOK reports whether the municipal applicability filter is
// active. It defaults to true and is disabled by either opt-out flag.
func (r *Request) FilterChosenDOK() bool {
	if r.IncludeFilterChosenDOK != nil && !*r.IncludeFilterChosenDOK {
		return false
	}
	if r.MunicipalityDokData != nil && !*r.MunicipalityDokData {
		return false
	}
	return true
}

// Response is the assembled outcome of one request.
type Response struct {
	InputGeometry      json.RawMessage    `json:"inputGeometry"`
	InputGeometryArea  float64            `json:"inputGeometryArea"`
	MunicipalityNumber string             `json:"municipalityNumber"`
	MunicipalityName   string             `json:"municipalityName"`
	ResultList         []*analysis.Result `json:"resultList"`
	Report             any                `json:"report"`
}

// Orchestrator fans one request out over the configured datasets.
type Orchestrator struct {
	datasets      []*config.DatasetConfig
	registry      *registry.Service
	runner        *analysis.Runner
	notifier      Notifier
	maxConcurrent int
}

func New(datasets []*config.DatasetConfig, reg *registry.Service, runner *analysis.Runner, notifier Notifier, maxConcurrent int) *Orchestrator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Orchestrator{
		datasets:      datasets,
		registry:      reg,
		runner:        runner,
		notifier:      notifier,
		maxConcurrent: maxConcurrent,
	}
}

// candidate pairs a dataset with the applicability verdict for this area.
type candidate struct {
	ds      *config.DatasetConfig
	analyze bool
}

// Run handles one request. correlationID keys the progress notifications;
// an empty id gets a fresh one.
func (o *Orchestrator) Run(ctx context.Context, req *Request, correlationID string) (*Response, error) {
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	working, epsg, err := geomutil.CreateInputGeometry(req.InputGeometry)
	if err != nil {
		return nil, eris.Wrap(err, "orchestrator: parse input geometry")
	}
	origEPSG := geomutil.GetEPSG(req.InputGeometry)

	resp := &Response{}
	if tagged, err := geomutil.AddGeoJSONCRS(req.InputGeometry, origEPSG); err == nil {
		resp.InputGeometry = tagged
	} else {
		resp.InputGeometry = req.InputGeometry
	}
	if area, err := geomutil.Area(working); err == nil {
		resp.InputGeometryArea = geomutil.RoundArea(area)
	}

	municipality, err := o.registry.GetMunicipality(ctx, working, epsg)
	if err != nil {
		zap.L().Warn("orchestrator: municipality lookup failed", zap.Error(err))
	} else if municipality != nil {
		resp.MunicipalityNumber = municipality.Number
		resp.MunicipalityName = municipality.Name
	}

	candidates, err := o.selectDatasets(ctx, req, municipality)
	if err != nil {
		return nil, err
	}

	toAnalyze := 0
	for _, c := range candidates {
		if c.analyze {
			toAnalyze++
		}
	}
	o.notify(func(n Notifier) { n.DatasetCount(correlationID, toAnalyze) })

	params := analysis.Params{
		Context:                   req.Context,
		Buffer:                    req.RequestedBuffer,
		IncludeGuidance:           req.IncludeGuidance,
		IncludeQualityMeasurement: req.IncludeQualityMeasurement,
	}

	results := make([]*analysis.Result, len(candidates))
	var g errgroup.Group
	g.SetLimit(o.maxConcurrent)

	for i, c := range candidates {
		g.Go(func() error {
			results[i] = o.runOne(ctx, c, working, epsg, origEPSG, params, correlationID)
			return nil
		})
	}
	// Tasks never return errors; failures degrade their own result.
	_ = g.Wait()

	resp.ResultList = results
	return resp, nil
}

// runOne analyzes a single dataset, converting panics into an ERROR result
// so one dataset can never corrupt its siblings.
func (o *Orchestrator) runOne(ctx context.Context, c candidate, working geom.T, epsg, origEPSG int, params analysis.Params, correlationID string) (res *analysis.Result) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("orchestrator: analysis panicked",
				zap.String("dataset", c.ds.Name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			res = &analysis.Result{
				ResultStatus: analysis.StatusError,
				Title:        c.ds.Title,
				Themes:       c.ds.Themes,
			}
		}
	}()

	if !c.analyze {
		return o.runner.Empty(ctx, c.ds)
	}

	start := time.Now()
	res = o.runner.Run(ctx, c.ds, working, epsg, origEPSG, params)
	zap.L().Debug("dataset analyzed",
		zap.String("dataset", c.ds.Name),
		zap.String("status", res.ResultStatus),
		zap.Duration("elapsed", time.Since(start)))

	o.notify(func(n Notifier) { n.DatasetAnalyzed(correlationID, c.ds.Name) })
	return res
}

// selectDatasets filters by theme and flags each candidate against the
// municipality's applicable dataset list. An empty list, a missing
// municipality or an opted-out filter means every candidate is analyzed;
// datasets without a catalog UUID are always analyzed.
func (o *Orchestrator) selectDatasets(ctx context.Context, req *Request, municipality *registry.Municipality) ([]candidate, error) {
	var kartgrunnlag []string
	if req.FilterChosenDOK() && municipality != nil {
		ids, err := o.registry.GetKartgrunnlag(ctx, municipality.Number)
		if err != nil {
			zap.L().Warn("orchestrator: kartgrunnlag lookup failed",
				zap.String("municipality", municipality.Number), zap.Error(err))
		} else {
			kartgrunnlag = ids
		}
	}

	inKartgrunnlag := make(map[string]struct{}, len(kartgrunnlag))
	for _, id := range kartgrunnlag {
		inKartgrunnlag[id] = struct{}{}
	}

	var candidates []candidate
	for _, ds := range o.datasets {
		if req.Theme != "" && !hasTheme(ds, req.Theme) {
			continue
		}
		analyze := len(kartgrunnlag) == 0 || ds.DatasetID == ""
		if !analyze {
			_, analyze = inKartgrunnlag[ds.DatasetID]
		}
		candidates = append(candidates, candidate{ds: ds, analyze: analyze})
	}
	return candidates, nil
}

func hasTheme(ds *config.DatasetConfig, theme string) bool {
	for _, t := range ds.Themes {
		if t == theme {
			return true
		}
	}
	return false
}

// notify runs a notification without letting the side channel slow down or
// fail the request.
func (o *Orchestrator) notify(fn func(Notifier)) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				zap.L().Warn("orchestrator: notifier panicked", zap.Any("panic", r))
			}
		}()
		fn(o.notifier)
	}()
}
