package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/ledgr/ledgr/internal/expense"
	"github.com/ledgr/ledgr/internal/mail"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleInboundEmail accepts the mail provider's inbound webhook and runs
// the ingestion pipeline. Handled outcomes, including "no content" and "no
// user", answer 200 so the provider does not retry; only a persistence
// failure answers 500 to invite one.
func (s *Server) handleInboundEmail(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil || len(bytes.TrimSpace(body)) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Invalid request body",
			"message": "Request body must be an inbound email JSON document",
		})
		return
	}

	var email expense.InboundEmail
	if err := json.Unmarshal(body, &email); err != nil {
		slog.Error("Failed to parse inbound email payload", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Invalid request body",
			"message": "Failed to parse JSON from request body",
		})
		return
	}

	result, err := s.ingest.ProcessInboundEmail(r.Context(), &email)
	if err != nil {
		slog.Error("Failed to persist expense", "from", email.From, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	switch result.Outcome {
	case expense.OutcomeNoContent:
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "No email content found to process",
		})
	case expense.OutcomeNoUser:
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "No user account found for this email address. Please sign up first and ensure your account email matches the sender email.",
			"email":   email.From,
		})
	default:
		// Run a budget check for this user while the write is fresh.
		// Failures here are logged only; the receipt was already handled.
		if s.engine != nil {
			if _, err := s.engine.CheckAlerts(r.Context(), result.Expense.UserID); err != nil {
				slog.Error("Post-ingestion budget check failed",
					"user_id", result.Expense.UserID, "error", err)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":        true,
			"message":        "Receipt processed successfully",
			"expense":        result.Expense,
			"processed_data": result.Draft,
		})
	}
}

// handleCheckAlerts evaluates budget alerts for all users, or for one user
// when the optional body names one
func (s *Server) handleCheckAlerts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	// Absent or invalid body means "check all users"
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.UserID = ""
	}

	report, err := s.engine.CheckAlerts(r.Context(), req.UserID)
	if err != nil {
		slog.Error("Budget alert check failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":             true,
		"alerts_checked":      report.AlertsChecked,
		"notifications_found": report.NotificationsFound,
		"emails_sent":         report.EmailsSent,
		"email_failures":      report.EmailFailures,
		"notifications":       report.Notifications,
		"email_results":       report.EmailResults,
	})
}

// handleSendAlert sends a single budget alert email. All four fields are
// required; a missing amount and a zero amount are both rejected.
func (s *Server) handleSendAlert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserEmail   string           `json:"userEmail"`
		SpentAmount *decimal.Decimal `json:"spentAmount"`
		LimitAmount *decimal.Decimal `json:"limitAmount"`
		Period      string           `json:"period"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Failed to parse JSON from request body",
		})
		return
	}

	if req.UserEmail == "" || req.SpentAmount == nil || req.LimitAmount == nil || req.Period == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Missing required fields: userEmail, spentAmount, limitAmount, period",
		})
		return
	}

	if err := mail.ValidateAddress(req.UserEmail); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "Invalid email format",
		})
		return
	}

	msg := mail.BudgetAlertMessage(s.fromEmail, req.UserEmail, req.Period, *req.SpentAmount, *req.LimitAmount)
	messageID, err := s.mailer.Send(r.Context(), msg)
	if err != nil {
		slog.Error("Failed to send budget alert email", "to", req.UserEmail, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"messageId": messageID,
	})
}
