// Package api exposes the derivation engine, the row store and the quote
// source over HTTP. JSON responses use the Envelope shape; exports are
// returned as xlsx downloads.
package api

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"SeasonalDesk/internal/model"
)

// maxUploadBytes bounds workbook uploads and JSON bodies.
const maxUploadBytes = 64 << 20

// AssetService is the store-facing side of the API.
type AssetService interface {
	Process(rows []model.RawRow, policy model.NaNPolicy) []model.DerivedRow
	Save(ctx context.Context, asset string, rows []model.DerivedRow) (string, error)
	Assets(ctx context.Context) ([]string, error)
	AssetRows(ctx context.Context, asset string) ([]model.StoredRow, error)
	Stats(ctx context.Context) (model.Stats, error)
	DateRange(ctx context.Context, asset string) (model.DateRange, error)
	AddRow(ctx context.Context, asset string, raw model.RawRow) ([]model.DerivedRow, error)
	UpdateRow(ctx context.Context, asset string, id int64, patch model.RawRow) ([]model.DerivedRow, error)
	DeleteRow(ctx context.Context, asset string, id int64) ([]model.DerivedRow, error)
	Clear(ctx context.Context) error
}

// QuoteSource fetches raw price rows for a ticker symbol.
type QuoteSource interface {
	RawRows(ctx context.Context, symbol, lookback string) ([]model.RawRow, error)
}

// Server wires HTTP handlers to the asset service.
type Server struct {
	assets     AssetService
	quotes     QuoteSource
	gatherer   prometheus.Gatherer
	replaceNaN bool
	validate   *validator.Validate
}

// NewServer creates a Server. replaceNaN is the policy used when a process
// request does not set replace_nan. quotes and gatherer may be nil, which
// disables the quote and metrics endpoints.
func NewServer(assets AssetService, quotes QuoteSource, gatherer prometheus.Gatherer, replaceNaN bool) *Server {
	v := validator.New()
	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Server{
		assets:     assets,
		quotes:     quotes,
		gatherer:   gatherer,
		replaceNaN: replaceNaN,
		validate:   v,
	}
}

// Routes returns the HTTP handler for every endpoint.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Post("/import", s.importWorkbook)
		r.Post("/import/file", s.importFile)
		r.Post("/process", s.process)
		r.Post("/export", s.exportRows)
		r.Get("/stats", s.stats)
		if s.quotes != nil {
			r.Get("/quotes/{symbol}", s.quote)
		}

		r.Route("/assets", func(r chi.Router) {
			r.Get("/", s.listAssets)
			r.Delete("/", s.clearAssets)

			r.Route("/{asset}", func(r chi.Router) {
				r.Get("/", s.assetRows)
				r.Post("/", s.saveAsset)
				r.Get("/range", s.dateRange)
				r.Get("/export", s.exportAsset)
				r.Post("/rows", s.addRow)
				r.Put("/rows/{id}", s.updateRow)
				r.Delete("/rows/{id}", s.deleteRow)
			})
		})
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, map[string]string{"status": "ok"})
}
