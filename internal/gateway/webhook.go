package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Plain-text webhook response bodies. The aggregator records these
// verbatim in its delivery logs, so the wording is part of the contract.
const (
	responseDataReceived    = "Data Received. Device ID: %s. Data: %s\n"
	responseCommandReceived = "Command Received. Device ID: %s. Data: %s\n"
	responseParseError      = "Error parsing data.\n"
	responseUnauthorized    = "Unauthorized Device. Device ID: %s\n"
	responseNotFound        = "Invalid Path. %s Not Found\n"
	responseInternalError   = "An unexpected error has occurred. Please contact support.\n"
)

// handleWebhook receives one aggregator post: either device telemetry
// for the admission pipeline or, when the topic field says so, a
// command submission for the dispatcher.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	values, err := decodeWebhookBody(r)
	if err != nil {
		s.logger.Warn("webhook body rejected",
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeText(w, http.StatusBadRequest, responseParseError)
		return
	}

	msg := parseInbound(values)
	echo := dataEcho(values)

	if command := msg.CommandText(); msg.IsCommand() && msg.ShortCode == s.cfg.Chikka.ShortCode && msg.MobileNumber != "" && command != "" {
		s.dispatcher.Submit(CommandInstruction{
			SequenceID: msg.RequestID,
			Command:    command,
			Devices:    []string{msg.MobileNumber},
		})
		writeText(w, http.StatusOK, fmt.Sprintf(responseCommandReceived, msg.MobileNumber, echo))
		return
	}

	result := s.admission.Admit(r.Context(), msg)

	if result.Outcome == Unauthorized && s.cfg.Auth.Strict {
		writeText(w, http.StatusUnauthorized, fmt.Sprintf(responseUnauthorized, msg.MobileNumber))
		return
	}

	// Rejections and non-strict authorization failures are still
	// acknowledged so the aggregator does not retry the same message.
	writeText(w, http.StatusOK, fmt.Sprintf(responseDataReceived, msg.MobileNumber, echo))
}

// decodeWebhookBody decodes the aggregator's form-encoded body,
// tolerating a missing or mislabelled Content-Type header.
func decodeWebhookBody(r *http.Request) (url.Values, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	raw := strings.TrimSpace(string(body))
	if raw == "" {
		return nil, fmt.Errorf("%w: empty body", ErrUnparseable)
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparseable, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrUnparseable)
	}

	return values, nil
}

// dataEcho renders the decoded fields as a JSON object for the
// response body, first value per key.
func dataEcho(values url.Values) string {
	flat := make(map[string]string, len(values))
	for key := range values {
		flat[key] = values.Get(key)
	}

	encoded, err := json.Marshal(flat)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

// writeText writes a plain-text response body.
func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, body) //nolint:errcheck // Best effort response write
}
