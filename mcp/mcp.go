// Package mcp offers the gateway actions as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mbocsi/sigbridge/proto"
	"github.com/mbocsi/sigbridge/services"
)

type MCPServer struct {
	Server   *server.MCPServer
	services *services.ServiceContainer
}

func NewMCPServer(name, version string, serviceContainer *services.ServiceContainer) *MCPServer {
	s := &MCPServer{
		Server:   server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		services: serviceContainer,
	}
	s.registerTools()
	return s
}

// Run serves MCP over in and out until ctx is done or in is closed.
func (s *MCPServer) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	slog.Info("Started stdio MCP server")
	defer func() {
		slog.Info("Shut down stdio MCP server")
	}()
	return server.NewStdioServer(s.Server).Listen(ctx, in, out)
}

func recipientOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("recipient_kind",
			mcp.Required(),
			mcp.Description("Whether the recipient is a person or a group"),
			mcp.Enum(string(proto.RecipientPerson), string(proto.RecipientGroup)),
		),
		mcp.WithString("recipient",
			mcp.Required(),
			mcp.Description("Phone number or username for a person, base64 group id for a group"),
		),
	}
}

func (s *MCPServer) registerTools() {
	sendTool := mcp.NewTool("send_message", append(recipientOptions(),
		mcp.WithDescription("Send a Signal message to a person or group"),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("Message text"),
		),
	)...)
	s.Server.AddTool(sendTool, s.handleSendMessage)

	reactTool := mcp.NewTool("send_reaction", append(recipientOptions(),
		mcp.WithDescription("React to a message with an emoji"),
		mcp.WithString("emoji",
			mcp.Required(),
			mcp.Description("Reaction emoji"),
		),
		mcp.WithString("author",
			mcp.Required(),
			mcp.Description("Author of the message being reacted to"),
		),
		mcp.WithNumber("timestamp",
			mcp.Required(),
			mcp.Description("Timestamp of the message being reacted to"),
		),
		mcp.WithBoolean("remove",
			mcp.Description("Remove a previous reaction instead of adding one"),
		),
	)...)
	s.Server.AddTool(reactTool, s.handleSendReaction)

	receiptTool := mcp.NewTool("send_read_receipt",
		mcp.WithDescription("Mark a received message as read or viewed"),
		mcp.WithString("recipient",
			mcp.Required(),
			mcp.Description("Sender of the message"),
		),
		mcp.WithNumber("timestamp",
			mcp.Required(),
			mcp.Description("Timestamp of the message"),
		),
		mcp.WithString("type",
			mcp.Description("Receipt type"),
			mcp.Enum(proto.ReceiptRead, proto.ReceiptViewed),
		),
	)
	s.Server.AddTool(receiptTool, s.handleSendReadReceipt)

	typingTool := mcp.NewTool("send_typing", append(recipientOptions(),
		mcp.WithDescription("Show or clear the typing indicator"),
		mcp.WithBoolean("stop",
			mcp.Description("Clear the indicator instead of showing it"),
		),
	)...)
	s.Server.AddTool(typingTool, s.handleSendTyping)
}

func recipientArg(request mcp.CallToolRequest) (proto.Recipient, error) {
	kind, err := request.RequireString("recipient_kind")
	if err != nil {
		return proto.Recipient{}, err
	}
	value, err := request.RequireString("recipient")
	if err != nil {
		return proto.Recipient{}, err
	}
	return proto.Recipient{Kind: proto.RecipientKind(kind), Value: value}, nil
}

// toolError turns a service failure into a tool result the model can read.
func toolError(action string, err error) *mcp.CallToolResult {
	if services.IsCode(err, services.ErrCodeUpstream) {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: daemon call failed", action))
	}
	return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: %v", action, err))
}

// jsonResult encodes v as the text of a tool result.
func jsonResult(action string, v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode tool result", "action", action, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to %s: could not encode result", action))
	}
	return mcp.NewToolResultText(string(data))
}

func (s *MCPServer) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recipient, err := recipientArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("message is required and must be a string"), nil
	}

	resp, err := s.services.Messaging.Send(ctx, proto.SendRequest{Recipient: recipient, Message: message})
	if err != nil {
		return toolError("send message", err), nil
	}

	return jsonResult("send message", resp), nil
}

func (s *MCPServer) handleSendReaction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recipient, err := recipientArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	emoji, err := request.RequireString("emoji")
	if err != nil {
		return mcp.NewToolResultError("emoji is required and must be a string"), nil
	}
	author, err := request.RequireString("author")
	if err != nil {
		return mcp.NewToolResultError("author is required and must be a string"), nil
	}
	timestamp, err := request.RequireFloat("timestamp")
	if err != nil || timestamp < 0 {
		return mcp.NewToolResultError("timestamp is required and must be a positive number"), nil
	}

	err = s.services.Messaging.React(ctx, proto.ReactRequest{
		Recipient: recipient,
		Emoji:     emoji,
		Author:    author,
		Timestamp: uint64(timestamp),
		Remove:    request.GetBool("remove", false),
	})
	if err != nil {
		return toolError("send reaction", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Reacted %s to message %d", emoji, uint64(timestamp))), nil
}

func (s *MCPServer) handleSendReadReceipt(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recipient, err := request.RequireString("recipient")
	if err != nil {
		return mcp.NewToolResultError("recipient is required and must be a string"), nil
	}
	timestamp, err := request.RequireFloat("timestamp")
	if err != nil || timestamp < 0 {
		return mcp.NewToolResultError("timestamp is required and must be a positive number"), nil
	}

	err = s.services.Messaging.Receipt(ctx, proto.ReceiptRequest{
		Recipient: recipient,
		Timestamp: uint64(timestamp),
		Type:      request.GetString("type", proto.ReceiptRead),
	})
	if err != nil {
		return toolError("send receipt", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Sent receipt for message %d", uint64(timestamp))), nil
}

func (s *MCPServer) handleSendTyping(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recipient, err := recipientArg(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	stop := request.GetBool("stop", false)

	if err := s.services.Messaging.Typing(ctx, proto.TypingRequest{Recipient: recipient, Stop: stop}); err != nil {
		return toolError("send typing indicator", err), nil
	}
	if stop {
		return mcp.NewToolResultText("Typing indicator cleared"), nil
	}
	return mcp.NewToolResultText("Typing indicator shown"), nil
}
