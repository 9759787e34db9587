package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ory/herodot"

	"github.com/lexgrove/evidentia/admission"
)

type generateRequest struct {
	Owner    string   `json:"owner"`
	Resource string   `json:"resource"`
	Query    string   `json:"query"`
	Evidence []string `json:"evidence"`
}

type generateResponse struct {
	Answer string `json:"answer"`
}

type queuedResponse struct {
	Ticket          string `json:"ticket"`
	Position        int    `json:"position"`
	EstimatedWaitMS int64  `json:"estimated_wait_ms"`
	PollURL         string `json:"poll_url"`
}

// handleGenerate routes a generation request through the admission
// controller: 200 with the answer on direct admission, 429 with Retry-After
// when the owner is busy, 202 with a poll ticket in queue mode.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason("invalid request body"))
		return
	}

	req := &admission.Request{
		Owner:    body.Owner,
		Resource: body.Resource,
		Query:    body.Query,
		Evidence: body.Evidence,
	}

	decision, err := s.controller.Submit(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, admission.ErrMissingOwner), errors.Is(err, admission.ErrEmptyQuery):
			s.writer.WriteError(w, r, herodot.ErrBadRequest.WithReason(err.Error()))
		default:
			s.logger.Error("generation failed", "owner", body.Owner, "err", err)
			s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("generation failed"))
		}
		return
	}

	switch decision.Status {
	case admission.StatusCompleted:
		s.writer.Write(w, r, generateResponse{Answer: decision.Answer})

	case admission.StatusBusy:
		retryAfter := int(decision.RetryAfter.Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		s.writer.WriteError(w, r, &herodot.DefaultError{
			CodeField:   http.StatusTooManyRequests,
			StatusField: http.StatusText(http.StatusTooManyRequests),
			ErrorField:  "a request for this user is already in flight",
			ReasonField: "retry after the in-flight request finishes",
		})

	case admission.StatusQueued:
		s.writer.WriteCode(w, r, http.StatusAccepted, queuedResponse{
			Ticket:          decision.Ticket,
			Position:        decision.Position,
			EstimatedWaitMS: decision.EstimatedWait.Milliseconds(),
			PollURL:         "/api/generate/" + decision.Ticket,
		})

	default:
		s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason("unexpected admission status"))
	}
}

// handlePoll reports the state of a queued generation ticket.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	ticket := chi.URLParam(r, "ticket")

	outcome, state := s.controller.Poll(ticket)
	switch state {
	case admission.TicketPending:
		s.writer.WriteCode(w, r, http.StatusAccepted, map[string]string{"status": "pending"})

	case admission.TicketDone:
		if outcome.Err != nil {
			s.writer.WriteError(w, r, herodot.ErrInternalServerError.WithReason(outcome.Err.Error()))
			return
		}
		s.writer.Write(w, r, generateResponse{Answer: outcome.Answer})

	default:
		s.writer.WriteError(w, r, herodot.ErrNotFound.
			WithReasonf("ticket %s is unknown or its result expired", ticket))
	}
}
