package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/heibot/chatguard"
	"github.com/heibot/chatguard/ledger"
	"github.com/heibot/chatguard/moderation"
	"github.com/heibot/chatguard/visibility"
)

type moderateRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type batchRequest struct {
	Messages []moderation.Message `json:"messages" binding:"required"`
}

type previewRequest struct {
	Text   string                `json:"text"`
	Viewer visibility.ViewerRole `json:"viewer"`
}

// deliveryView is what the recipient of a message receives.
type deliveryView struct {
	Visible    bool   `json:"visible"`
	Text       string `json:"text"`
	IsReplaced bool   `json:"is_replaced"`
	Notice     string `json:"notice,omitempty"`
}

type moderateResponse struct {
	ID             string             `json:"id"`
	FilteredText   string             `json:"filtered_text"`
	IsViolation    bool               `json:"is_violation"`
	Category       chatguard.Category `json:"category"`
	Severity       chatguard.Severity `json:"severity"`
	MatchedRuleID  string             `json:"matched_rule_id"`
	Action         chatguard.Action   `json:"action"`
	WarningCount   int                `json:"warning_count"`
	WarningMessage string             `json:"warning_message,omitempty"`
	Counted        bool               `json:"counted"`
	CanSend        bool               `json:"can_send"`
	Recipient      deliveryView       `json:"recipient"`
	Error          string             `json:"error,omitempty"`
}

type ruleView struct {
	ID          string                 `json:"id"`
	Category    chatguard.Category     `json:"category"`
	Severity    chatguard.Severity     `json:"severity"`
	Mask        chatguard.MaskStrategy `json:"mask"`
	Description string                 `json:"description"`
}

func (s *Server) view(r visibility.Rendered) deliveryView {
	return deliveryView{Visible: r.Visible, Text: r.Text, IsReplaced: r.IsReplaced, Notice: r.Message}
}

func (s *Server) response(eval *moderation.Evaluation) moderateResponse {
	r := eval.Result
	return moderateResponse{
		ID:             r.ID,
		FilteredText:   r.FilteredText,
		IsViolation:    r.IsViolation,
		Category:       r.Category,
		Severity:       r.Severity,
		MatchedRuleID:  r.MatchedRuleID,
		Action:         eval.Action,
		WarningCount:   eval.WarningCount,
		WarningMessage: eval.WarningMessage,
		Counted:        eval.Counted,
		CanSend:        visibility.CanSend(eval.Action),
		Recipient:      s.view(s.renderer.Render(r, visibility.ViewerRecipient)),
	}
}

func (s *Server) handleModerate(c *gin.Context) {
	var req moderateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	eval, err := s.mod.Evaluate(c.Request.Context(), req.UserID, req.Text)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, s.response(eval))
	case chatguard.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chatguard.ErrLedgerUnavailable) && eval != nil:
		resp := s.response(eval)
		resp.Error = "ledger_unavailable"
		c.JSON(http.StatusServiceUnavailable, resp)
	default:
		s.logger.ErrorContext(c.Request.Context(), "evaluate failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}

func (s *Server) handleModerateBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}
	if len(req.Messages) > s.maxBatch {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too_many_messages", "max": s.maxBatch})
		return
	}
	for i, m := range req.Messages {
		if strings.TrimSpace(m.UserID) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required", "index": i})
			return
		}
	}

	evals, err := s.mod.EvaluateBatch(c.Request.Context(), req.Messages)
	results := make([]*moderateResponse, len(evals))
	for i, e := range evals {
		if e != nil {
			resp := s.response(e)
			results[i] = &resp
		}
	}
	body := gin.H{"results": results, "summary": moderation.Summarize(evals)}

	switch {
	case err == nil:
		c.JSON(http.StatusOK, body)
	case chatguard.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chatguard.ErrLedgerUnavailable):
		body["error"] = "ledger_unavailable"
		c.JSON(http.StatusServiceUnavailable, body)
	default:
		s.logger.ErrorContext(c.Request.Context(), "batch evaluate failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}

func (s *Server) handlePreview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	viewer := req.Viewer
	switch viewer {
	case "":
		viewer = visibility.ViewerRecipient
	case visibility.ViewerSender, visibility.ViewerRecipient, visibility.ViewerAdmin:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown viewer"})
		return
	}

	r := s.mod.Preview(req.Text)
	c.JSON(http.StatusOK, gin.H{
		"id":              r.ID,
		"filtered_text":   r.FilteredText,
		"is_violation":    r.IsViolation,
		"category":        r.Category,
		"severity":        r.Severity,
		"matched_rule_id": r.MatchedRuleID,
		"safe":            !r.Blocking(),
		"delivery":        s.view(s.renderer.Render(r, viewer)),
	})
}

func (s *Server) handleRules(c *gin.Context) {
	set := s.mod.Rules()
	out := make([]ruleView, 0, set.Len())
	for _, r := range set.Rules() {
		out = append(out, ruleView{
			ID:          r.ID,
			Category:    r.Category,
			Severity:    r.Severity,
			Mask:        r.Mask,
			Description: r.Description,
		})
	}
	c.JSON(http.StatusOK, gin.H{"rules": out})
}

func (s *Server) handleViolations(c *gin.Context) {
	rec, err := s.mod.Violations(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.ledgerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":       rec.UserID,
		"warning_count": rec.WarningCount,
		"history":       rec.History,
		"action":        s.mod.Decide(rec.WarningCount),
	})
}

func (s *Server) handleResetViolations(c *gin.Context) {
	if err := s.mod.ResetViolations(c.Request.Context(), c.Param("id")); err != nil {
		s.ledgerError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleHealth(c *gin.Context) {
	if p := findPinger(s.mod.Ledger()); p != nil {
		if err := p.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "ledger": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rules": s.mod.Rules().Len()})
}

func (s *Server) ledgerError(c *gin.Context, err error) {
	switch {
	case chatguard.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chatguard.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
	case errors.Is(err, chatguard.ErrNotSupported):
		c.JSON(http.StatusNotImplemented, gin.H{"error": "not_supported"})
	case errors.Is(err, chatguard.ErrLedgerUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ledger_unavailable"})
	default:
		s.logger.ErrorContext(c.Request.Context(), "ledger request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// findPinger looks through ledger wrappers for a backend that can be pinged.
func findPinger(l ledger.Ledger) pinger {
	for l != nil {
		if p, ok := l.(pinger); ok {
			return p
		}
		u, ok := l.(interface{ Unwrap() ledger.Ledger })
		if !ok {
			return nil
		}
		l = u.Unwrap()
	}
	return nil
}
