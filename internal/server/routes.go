package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Runs
	mux.HandleFunc("/api/run", s.app.RunHandler.RunHandler)       // POST - start a run, NDJSON stream
	mux.HandleFunc("/api/run/stop", s.app.RunHandler.StopHandler) // POST - stop the active run of a case
	mux.HandleFunc("/api/cases", s.app.RunHandler.CasesHandler)   // GET - list case templates

	// API routes - Status
	mux.HandleFunc("/api/status", s.app.StatusHandler.StatusHandler) // GET [?case=]

	// API routes - Schedules
	mux.HandleFunc("/api/schedules", s.app.ScheduleHandler.CollectionHandler) // GET (list), POST (create)
	mux.HandleFunc("/api/schedules/", s.app.ScheduleHandler.ItemHandler)      // GET/PUT/DELETE /{id}
	mux.HandleFunc("/api/audit", s.app.ScheduleHandler.AuditHandler)          // GET - trigger audit log

	// API routes - Metrics
	mux.HandleFunc("/api/metrics", s.app.MetricsHandler.MetricsHandler) // GET [?run_id=]

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// Everything else is an unknown endpoint
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}
