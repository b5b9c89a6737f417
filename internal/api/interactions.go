package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/moose-rewards/moose/internal/app/dispatch"
)

// ─── Interaction API ────────────────────────────────────────────────────────
// POST /points/interactions          run a points command
// POST /bank/interactions            run a bank command
// POST /bank/views/{id}/{direction}  page through a statement
// POST /points/reactions             does this reaction open a ticket?
//
// Command outcomes, including rejections, are 200 responses carrying the
// reply; its "error" field holds the stable error code. Only malformed
// requests get a 4xx.

// maxBody caps request bodies.
const maxBody = 64 << 10

// handleInteraction decodes an invocation and writes the dispatcher's reply.
func (s *Server) handleInteraction(d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var inv dispatch.Invocation
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&inv); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
			return
		}
		if strings.TrimSpace(inv.Command) == "" {
			writeError(w, http.StatusBadRequest, "command is required")
			return
		}

		// Delivery runs detached from the request. Once the request context is
		// done the timeout middleware owns the response, so nothing is written.
		reqCtx := r.Context()
		err := d.Serve(reqCtx, inv, dispatch.ReplierFunc(func(ctx context.Context, reply dispatch.Reply) error {
			if err := reqCtx.Err(); err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			writeJSON(w, http.StatusOK, reply)
			return nil
		}))
		if err != nil {
			s.logger.Warn("interaction reply not written", "variant", d.Variant(), "command", inv.Command, "error", err)
		}
	}
}

type navigateRequest struct {
	ActorID string `json:"actor_id"`
}

// handleNavigate moves a paged view. The actor comes from the JSON body or
// the "actor" query parameter.
func (s *Server) handleNavigate(d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := r.URL.Query().Get("actor")
		if r.ContentLength != 0 {
			var body navigateRequest
			if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
				return
			}
			if body.ActorID != "" {
				actor = body.ActorID
			}
		}
		if actor == "" {
			writeError(w, http.StatusBadRequest, "actor_id is required")
			return
		}

		reply := d.Navigate(r.Context(), chi.URLParam(r, "id"), actor, chi.URLParam(r, "direction"))
		writeJSON(w, http.StatusOK, reply)
	}
}

type reactionRequest struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
	ActorID   string `json:"actor_id"`
}

type reactionResponse struct {
	OpenTicket bool `json:"open_ticket"`
}

func (s *Server) handleReaction(w http.ResponseWriter, r *http.Request) {
	if s.tickets == nil {
		writeError(w, http.StatusServiceUnavailable, "tickets not configured")
		return
	}
	var body reactionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if body.MessageID == "" {
		writeError(w, http.StatusBadRequest, "message_id is required")
		return
	}

	open, err := s.tickets.IsTicketTrigger(r.Context(), body.MessageID, body.Emoji)
	if err != nil {
		s.logger.Error("ticket check failed", "message_id", body.MessageID, "error", err)
		writeError(w, http.StatusInternalServerError, "ticket check failed")
		return
	}
	if open {
		s.logger.Info("ticket requested", "actor", body.ActorID, "message_id", body.MessageID)
	}
	writeJSON(w, http.StatusOK, reactionResponse{OpenTicket: open})
}
