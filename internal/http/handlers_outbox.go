package http

import (
	"fmt"
	"net/http"

	"github.com/GMosna/ContabilApp/internal/log"
	"github.com/GMosna/ContabilApp/internal/state"
)

// handleOutboxStats reports how many offline changes are still waiting.
func (s *Server) handleOutboxStats(w http.ResponseWriter, r *http.Request) {
	if s.outbox == nil {
		NewResponse().Data(state.OutboxStats{}).Write(w)
		return
	}
	stats, err := s.outbox.Stats(r.Context())
	if err != nil {
		writeError(w, r, err, "outbox_stats")
		return
	}
	NewResponse().Data(stats).Write(w)
}

// handleOutboxRetry puts failed offline changes back in the queue.
func (s *Server) handleOutboxRetry(w http.ResponseWriter, r *http.Request) {
	if s.outbox == nil {
		NotFoundError("Fila offline não configurada.").Write(w)
		return
	}
	n, err := s.outbox.RetryFailed(r.Context())
	if err != nil {
		writeError(w, r, err, "outbox_retry")
		return
	}
	s.logger.InfoContext(r.Context(), "Failed outbox items requeued", "count", n, log.FieldOperation, "outbox_retry")

	resp := NewResponse().Data(map[string]int64{"requeued": n})
	if n > 0 {
		resp.NotifySuccess(fmt.Sprintf("%d alteração(ões) voltaram para a fila.", n))
	}
	resp.Write(w)
}
