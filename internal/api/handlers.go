package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"SeasonalDesk/internal/model"
	"SeasonalDesk/internal/workbook"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type importFileRequest struct {
	Path string `json:"path" validate:"required"`
}

type processRequest struct {
	Rows       []model.RawRow `json:"rows" validate:"required"`
	ReplaceNaN *bool          `json:"replace_nan"`
}

type rowsRequest struct {
	Rows []model.DerivedRow `json:"rows" validate:"required"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, maxUploadBytes), v); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}

// decode reads a JSON request struct and validates its tags.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	if err := decodeJSON(w, r, v); err != nil {
		return err
	}
	return s.validate.Struct(v)
}

// assetParam returns the decoded {asset} segment. chi matches on RawPath
// only when the path carries an escaped slash or similar, so the segment
// is still escaped in that case and already decoded otherwise.
func assetParam(r *http.Request) string {
	a := chi.URLParam(r, "asset")
	if r.URL.RawPath == "" {
		return a
	}
	if u, err := url.PathUnescape(a); err == nil {
		return u
	}
	return a
}

func rowIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, badRequest("invalid row id %q", raw)
	}
	return id, nil
}

// importWorkbook accepts a multipart upload in field "file" or a raw xlsx
// request body.
func (s *Server) importWorkbook(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	var src io.Reader = body

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = body
		file, _, err := r.FormFile("file")
		if err != nil {
			respondError(w, r, badRequest("read upload: %v", err))
			return
		}
		defer file.Close()
		src = file
	}

	rows, err := workbook.Read(src)
	if err != nil {
		respondError(w, r, withStatus(http.StatusBadRequest, err))
		return
	}
	respondData(w, r, rows)
}

func (s *Server) importFile(w http.ResponseWriter, r *http.Request) {
	var req importFileRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	rows, err := workbook.ReadFile(req.Path)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, fs.ErrNotExist) {
			status = http.StatusNotFound
		}
		respondError(w, r, withStatus(status, err))
		return
	}
	respondData(w, r, rows)
}

func (s *Server) process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	replace := s.replaceNaN
	if req.ReplaceNaN != nil {
		replace = *req.ReplaceNaN
	}
	respondData(w, r, s.assets.Process(req.Rows, model.PolicyFor(replace)))
}

func (s *Server) exportRows(w http.ResponseWriter, r *http.Request) {
	var req rowsRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := workbook.WriteDerived(&buf, req.Rows); err != nil {
		respondError(w, r, err)
		return
	}
	sendWorkbook(w, "processed_data.xlsx", &buf)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.assets.Stats(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, stats)
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	lookback := r.URL.Query().Get("range")
	rows, err := s.quotes.RawRows(r.Context(), symbol, lookback)
	if err != nil {
		respondError(w, r, withStatus(http.StatusBadGateway, err))
		return
	}
	respondData(w, r, rows)
}

func (s *Server) listAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.assets.Assets(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, assets)
}

func (s *Server) clearAssets(w http.ResponseWriter, r *http.Request) {
	if err := s.assets.Clear(r.Context()); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, r, "Database cleared")
}

func (s *Server) assetRows(w http.ResponseWriter, r *http.Request) {
	rows, err := s.assets.AssetRows(r.Context(), assetParam(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, rows)
}

func (s *Server) saveAsset(w http.ResponseWriter, r *http.Request) {
	var req rowsRequest
	if err := s.decode(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	msg, err := s.assets.Save(r.Context(), assetParam(r), req.Rows)
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	respondMessage(w, r, msg)
}

func (s *Server) dateRange(w http.ResponseWriter, r *http.Request) {
	rng, err := s.assets.DateRange(r.Context(), assetParam(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, rng)
}

func (s *Server) exportAsset(w http.ResponseWriter, r *http.Request) {
	name := assetParam(r)
	rows, err := s.assets.AssetRows(r.Context(), name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := workbook.WriteStored(&buf, rows); err != nil {
		respondError(w, r, err)
		return
	}
	sendWorkbook(w, name+".xlsx", &buf)
}

func (s *Server) addRow(w http.ResponseWriter, r *http.Request) {
	var raw model.RawRow
	if err := decodeJSON(w, r, &raw); err != nil {
		respondError(w, r, err)
		return
	}
	rows, err := s.assets.AddRow(r.Context(), assetParam(r), raw)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, rows)
}

func (s *Server) updateRow(w http.ResponseWriter, r *http.Request) {
	id, err := rowIDParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var patch model.RawRow
	if err := decodeJSON(w, r, &patch); err != nil {
		respondError(w, r, err)
		return
	}
	rows, err := s.assets.UpdateRow(r.Context(), assetParam(r), id, patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, rows)
}

func (s *Server) deleteRow(w http.ResponseWriter, r *http.Request) {
	id, err := rowIDParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	rows, err := s.assets.DeleteRow(r.Context(), assetParam(r), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, r, rows)
}

func sendWorkbook(w http.ResponseWriter, filename string, buf *bytes.Buffer) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
