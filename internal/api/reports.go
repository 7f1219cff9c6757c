package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dennisdiepolder/xferlink/internal/metrics"
	"github.com/dennisdiepolder/xferlink/internal/report"
	"github.com/rs/zerolog"
)

// SummarySink receives the summary of each completed run, e.g. the websocket
// hub or an MQTT publisher.
type SummarySink func(report.Summary)

// ReportsHandler provides REST endpoints for transfer correlation reports
type ReportsHandler struct {
	engine    *report.Engine
	maxWindow time.Duration
	sinks     []SummarySink
	logger    zerolog.Logger
}

// NewReportsHandler creates a new ReportsHandler
func NewReportsHandler(engine *report.Engine, maxWindow time.Duration, logger zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{
		engine:    engine,
		maxWindow: maxWindow,
		logger:    logger.With().Str("component", "reports_handler").Logger(),
	}
}

// AddSummarySink registers a sink notified after each successful run
func (h *ReportsHandler) AddSummarySink(sink SummarySink) {
	h.sinks = append(h.sinks, sink)
}

// GetTransfers runs a correlation run and returns the full report
// GET /api/reports/transfers?from=<unix>&to=<unix>
func (h *ReportsHandler) GetTransfers(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.run(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rep)
}

// GetSummary runs a correlation run and returns the summary only
// GET /api/reports/transfers/summary?from=<unix>&to=<unix>
func (h *ReportsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.run(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rep.Summary)
}

func (h *ReportsHandler) run(w http.ResponseWriter, r *http.Request) (*report.Report, bool) {
	window, err := parseWindow(r, h.maxWindow)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	start := time.Now()
	rep, err := h.engine.Run(r.Context(), window)
	if err != nil {
		h.logger.Error().Err(err).Msg("correlation run failed")
		metrics.Get().RecordReportError()
		http.Error(w, "failed to generate report", http.StatusInternalServerError)
		return nil, false
	}

	metrics.Get().RecordReport(time.Since(start), len(rep.Rows), len(rep.FailedTransfers))
	for _, row := range rep.Rows {
		metrics.Get().RecordRowStatus(row.Status)
	}

	for _, sink := range h.sinks {
		sink(rep.Summary)
	}

	return rep, true
}

// windowError is a user-facing request validation failure.
type windowError string

func (e windowError) Error() string { return string(e) }

func parseWindow(r *http.Request, maxWindow time.Duration) (report.Window, error) {
	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")
	if fromStr == "" || toStr == "" {
		return report.Window{}, windowError("from and to query parameters are required (unix seconds)")
	}

	from, err := strconv.ParseInt(fromStr, 10, 64)
	if err != nil {
		return report.Window{}, windowError("invalid from parameter")
	}
	to, err := strconv.ParseInt(toStr, 10, 64)
	if err != nil {
		return report.Window{}, windowError("invalid to parameter")
	}
	if to <= from {
		return report.Window{}, windowError("to must be after from")
	}
	if time.Duration(to-from)*time.Second > maxWindow {
		return report.Window{}, windowError("requested window exceeds the maximum of " + maxWindow.String())
	}

	return report.Window{
		From: time.Unix(from, 0).UTC(),
		To:   time.Unix(to, 0).UTC(),
	}, nil
}
