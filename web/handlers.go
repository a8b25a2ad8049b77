package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mbocsi/sigbridge/proto"
	"github.com/mbocsi/sigbridge/services"
)

type endpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

type descriptor struct {
	Name      string     `json:"name"`
	Version   string     `json:"version"`
	URL       string     `json:"url"`
	Endpoints []endpoint `json:"endpoints"`
}

var endpoints = []endpoint{
	{http.MethodPost, "/send"},
	{http.MethodPost, "/react"},
	{http.MethodPost, "/receive"},
	{http.MethodPost, "/typing"},
	{http.MethodPost, "/v2/send"},
	{http.MethodGet, "/docs"},
	{http.MethodGet, "/docs/openapi.json"},
	{http.MethodGet, "/events"},
	{http.MethodGet, "/metrics"},
	{http.MethodGet, "/live"},
	{http.MethodGet, "/ready"},
}

func (g *Gateway) HandleIndex(wr http.ResponseWriter, r *http.Request) {
	writeJSON(wr, http.StatusOK, descriptor{
		Name:      Name,
		Version:   Version,
		URL:       g.baseURL,
		Endpoints: endpoints,
	})
}

func (g *Gateway) HandleSend(wr http.ResponseWriter, r *http.Request) {
	var req proto.SendRequest
	if err := g.decodeBody(wr, r, &req); err != nil {
		g.handleError(wr, "send", err)
		return
	}

	resp, err := g.services.Messaging.Send(r.Context(), req)
	if err != nil {
		g.handleError(wr, "send", err)
		return
	}
	g.respond(wr, "send", resp)
}

// HandleSendCompat accepts the v2 send body of bbernhard/signal-cli-rest-api.
func (g *Gateway) HandleSendCompat(wr http.ResponseWriter, r *http.Request) {
	var req proto.SendCompatRequest
	if err := g.decodeBody(wr, r, &req); err != nil {
		g.handleError(wr, "send_compat", err)
		return
	}

	resp, err := g.services.Messaging.SendCompat(r.Context(), req)
	if err != nil {
		g.handleError(wr, "send_compat", err)
		return
	}
	g.respond(wr, "send_compat", resp)
}

func (g *Gateway) HandleReact(wr http.ResponseWriter, r *http.Request) {
	var req proto.ReactRequest
	if err := g.decodeBody(wr, r, &req); err != nil {
		g.handleError(wr, "react", err)
		return
	}

	if err := g.services.Messaging.React(r.Context(), req); err != nil {
		g.handleError(wr, "react", err)
		return
	}
	g.respond(wr, "react", nil)
}

// HandleReceipt sends a read receipt. The path is /receive for compatibility.
func (g *Gateway) HandleReceipt(wr http.ResponseWriter, r *http.Request) {
	var req proto.ReceiptRequest
	if err := g.decodeBody(wr, r, &req); err != nil {
		g.handleError(wr, "receipt", err)
		return
	}

	if err := g.services.Messaging.Receipt(r.Context(), req); err != nil {
		g.handleError(wr, "receipt", err)
		return
	}
	g.respond(wr, "receipt", nil)
}

func (g *Gateway) HandleTyping(wr http.ResponseWriter, r *http.Request) {
	var req proto.TypingRequest
	if err := g.decodeBody(wr, r, &req); err != nil {
		g.handleError(wr, "typing", err)
		return
	}

	if err := g.services.Messaging.Typing(r.Context(), req); err != nil {
		g.handleError(wr, "typing", err)
		return
	}
	g.respond(wr, "typing", nil)
}

func (g *Gateway) decodeBody(wr http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(wr, r.Body, g.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.ServiceError{Code: services.ErrCodeTooLarge, Message: "Request body too large", Cause: err}
		}
		return services.ServiceError{Code: services.ErrCodeBadRequest, Message: "Invalid request body", Cause: err}
	}
	return nil
}

// respond writes 200 with body as JSON, or an empty 200 when body is nil.
func (g *Gateway) respond(wr http.ResponseWriter, action string, body any) {
	g.metrics.ObserveGatewayRequest(action, http.StatusOK)
	if body == nil {
		wr.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(wr, http.StatusOK, body)
}

// handleError handles service errors with proper HTTP status codes
func (g *Gateway) handleError(wr http.ResponseWriter, action string, err error) {
	status := http.StatusInternalServerError
	message := "Internal server error"

	var serviceErr services.ServiceError
	if errors.As(err, &serviceErr) {
		switch serviceErr.Code {
		case services.ErrCodeInvalidInput:
			status = http.StatusUnprocessableEntity
			message = serviceErr.Message
		case services.ErrCodeBadRequest:
			status = http.StatusBadRequest
			message = serviceErr.Error()
		case services.ErrCodeTooLarge:
			status = http.StatusRequestEntityTooLarge
			message = serviceErr.Message
		}
	}

	if status == http.StatusInternalServerError {
		slog.Error("Gateway request failed", "action", action, "error", err)
	} else {
		slog.Debug("Rejected gateway request", "action", action, "status", status, "error", err)
	}

	g.metrics.ObserveGatewayRequest(action, status)
	http.Error(wr, message, status)
}

func writeJSON(wr http.ResponseWriter, status int, v any) {
	wr.Header().Set("Content-Type", "application/json")
	wr.WriteHeader(status)
	if err := json.NewEncoder(wr).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
