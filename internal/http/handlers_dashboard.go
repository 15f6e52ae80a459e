package http

import (
	"context"
	"net/http"
	"time"
)

// readTimeout bounds the backend round trips behind a page load.
const readTimeout = 7 * time.Second

// handleDashboard returns balances, totals, the per-category split and the
// latest entries. When the backend is down the last known data comes back
// with stale set.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	d, err := s.finance.Dashboard(ctx)
	if err != nil {
		writeError(w, r, err, "dashboard")
		return
	}
	resp := NewResponse().Data(d)
	if d.Stale {
		resp.NotifyWarning(msgStale)
	}
	resp.Write(w)
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	c, err := s.finance.Charts(ctx)
	if err != nil {
		writeError(w, r, err, "charts")
		return
	}
	resp := NewResponse().Data(c)
	if c.Stale {
		resp.NotifyWarning(msgStale)
	}
	resp.Write(w)
}
