package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/KaramelBytes/csvglance/internal/analysis"
	"github.com/KaramelBytes/csvglance/internal/chart"
	"github.com/KaramelBytes/csvglance/internal/parser"
)

// FileField is the multipart field carrying the upload.
const FileField = "file"

type errorBody struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.cfg.MaxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, tooLarge(s.cfg.MaxUploadBytes), "RequestEntityTooLarge")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	f, hdr, err := r.FormFile(FileField)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, tooLarge(s.cfg.MaxUploadBytes), "RequestEntityTooLarge")
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "no file"})
		return
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "ReadError")
		return
	}
	if len(raw) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "empty file"})
		return
	}

	tbl, err := parser.ReadBytes(hdr.Filename, raw)
	if err != nil {
		status, kind := classifyParseError(err)
		s.log.Warn("upload %s: %v", hdr.Filename, err)
		writeError(w, status, err.Error(), kind)
		return
	}
	p := analysis.BuildPayload(tbl, s.payloadOptions())
	column := "none"
	if p.Summary.NumericSummary != nil {
		column = p.Summary.NumericSummary.Column
	}
	s.log.Debug("upload %s: %d rows, %d columns, numeric column %s", hdr.Filename, p.Summary.Rows, len(p.Summary.Columns), column)
	writeJSON(w, http.StatusOK, p)
}

func classifyParseError(err error) (int, string) {
	switch {
	case errors.Is(err, parser.ErrNoColumns):
		return http.StatusInternalServerError, "EmptyDataError"
	case errors.Is(err, parser.ErrUnsupported):
		return http.StatusUnsupportedMediaType, "UnsupportedMediaType"
	default:
		return http.StatusInternalServerError, "ParserError"
	}
}

// maxChartBody caps a chart configuration posted to /chart.
const maxChartBody = 1 << 20

// handleChart draws a posted bar chart configuration as SVG (default) or PNG.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	format, err := chart.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "BadChart")
		return
	}
	if r.URL.Query().Get("format") == "" {
		format = chart.FormatSVG
	}
	var cfg chart.Config
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChartBody)).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid chart config: "+err.Error(), "BadChart")
		return
	}
	var img bytes.Buffer
	if err := chart.Draw(cfg, format, 0, 0, &img); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "BadChart")
		return
	}
	ct := "image/png"
	if format == chart.FormatSVG {
		ct = "image/svg+xml"
	}
	w.Header().Set("Content-Type", ct)
	_, _ = w.Write(img.Bytes())
}

func tooLarge(limit int64) string {
	return fmt.Sprintf("413 Request Entity Too Large: upload exceeds %d bytes", limit)
}

// recoverJSON turns handler panics into a JSON 500.
func (s *Server) recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.log.Error("panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				writeError(w, http.StatusInternalServerError, fmt.Sprint(rec), "InternalServerError")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, errorBody{Error: msg, Type: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
