package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/fact-oracle/internal/model"
	"github.com/sells-group/fact-oracle/internal/oracle"
	"github.com/sells-group/fact-oracle/internal/payment"
)

type askRequest struct {
	Question string `json:"question"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type paymentRequiredBody struct {
	errorBody
	payment.Guidance
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	domain, ok := model.ParseDomain(chi.URLParam(r, "domain"))
	if !ok {
		s.writeError(w, model.Errorf(model.KindUnknownDomain, "unknown domain %q", chi.URLParam(r, "domain")))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		msg := "request body must be JSON with a question field"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "request body is too large"
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: msg})
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: "question is required"})
		return
	}

	resp, err := s.oracle.Handle(r.Context(), oracle.Request{
		Domain:     domain,
		Question:   req.Question,
		Credential: payment.CredentialFromRequest(r, s.oracle.Gate().Header()),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	domain, ok := model.ParseDomain(chi.URLParam(r, "domain"))
	if !ok {
		s.writeError(w, model.Errorf(model.KindUnknownDomain, "unknown domain %q", chi.URLParam(r, "domain")))
		return
	}
	snap, err := s.oracle.Governor().Snapshot(r.Context(), domain)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindMissingCredential:
		return http.StatusPaymentRequired
	case model.KindInvalidCredential, model.KindVerifierUnreachable:
		return http.StatusUnauthorized
	case model.KindUnknownDomain:
		return http.StatusNotFound
	case model.KindBreakerOpen, model.KindQuotaExceeded:
		return http.StatusServiceUnavailable
	case model.KindParse:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	status := statusFor(kind)
	body := errorBody{Error: string(kind), Message: model.MessageOf(err)}

	switch kind {
	case model.KindMissingCredential, model.KindInvalidCredential:
		writeJSON(w, status, paymentRequiredBody{errorBody: body, Guidance: s.oracle.Gate().Guidance()})
		return
	case model.KindQuotaExceeded:
		secs := int(math.Ceil(s.oracle.Governor().UntilReset().Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
	case model.KindInternal:
		zap.L().Error("server: internal error", zap.Error(err))
		body.Message = "internal error"
	}
	writeJSON(w, status, body)
}
