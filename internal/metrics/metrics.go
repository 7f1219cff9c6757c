package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Report metrics
	ReportsGeneratedTotal int64
	ReportErrorsTotal     int64
	RowsTotal             int64
	FailedTransfersTotal  int64
	linksByPass           map[string]int64
	rowsByStatus          map[string]int64
	lastRunDuration       time.Duration

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	WebSocketErrorsTotal         int64
	activeConnections            int64

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			linksByPass:          make(map[string]int64),
			rowsByStatus:         make(map[string]int64),
			httpRequestsTotal:    make(map[string]map[int]int64),
			httpRequestDurations: make(map[string][]float64),
			startTime:            time.Now(),
		}
	})
	return instance
}

// RecordReport records one completed correlation run
func (m *Metrics) RecordReport(duration time.Duration, rows, failedTransfers int) {
	m.mu.Lock()
	m.ReportsGeneratedTotal++
	m.RowsTotal += int64(rows)
	m.FailedTransfersTotal += int64(failedTransfers)
	m.lastRunDuration = duration
	m.mu.Unlock()
}

// RecordReportError increments the failed run counter
func (m *Metrics) RecordReportError() {
	m.mu.Lock()
	m.ReportErrorsTotal++
	m.mu.Unlock()
}

// RecordLinks records how many links a matching pass produced
func (m *Metrics) RecordLinks(pass string, count int) {
	m.mu.Lock()
	m.linksByPass[pass] += int64(count)
	m.mu.Unlock()
}

// RecordRowStatus counts one report row by its outcome
func (m *Metrics) RecordRowStatus(status string) {
	m.mu.Lock()
	m.rowsByStatus[status]++
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.mu.Lock()
	m.WebSocketMessagesTotal++
	m.mu.Unlock()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.mu.Lock()
	m.WebSocketErrorsTotal++
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations for percentile calculation
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		// Helper to write metric
		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			}
		}

		// System metrics
		write("xferlink_uptime_seconds", time.Since(m.startTime).Seconds())

		// Report metrics
		write("xferlink_reports_generated_total", m.ReportsGeneratedTotal)
		write("xferlink_report_errors_total", m.ReportErrorsTotal)
		write("xferlink_report_rows_total", m.RowsTotal)
		write("xferlink_failed_transfers_total", m.FailedTransfersTotal)
		write("xferlink_report_run_duration_seconds", m.lastRunDuration.Seconds())

		for pass, count := range m.linksByPass {
			write("xferlink_links_total", count, "pass", pass)
		}
		for status, count := range m.rowsByStatus {
			write("xferlink_rows_by_status", count, "status", status)
		}

		// WebSocket metrics
		write("xferlink_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("xferlink_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("xferlink_websocket_active_connections", m.activeConnections)
		write("xferlink_websocket_messages_total", m.WebSocketMessagesTotal)
		write("xferlink_websocket_errors_total", m.WebSocketErrorsTotal)

		// HTTP metrics
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("xferlink_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}
