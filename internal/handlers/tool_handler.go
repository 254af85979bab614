package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/agent-tools/internal/interfaces"
	"github.com/akylbek/payment-system/agent-tools/internal/telemetry"
	"github.com/akylbek/payment-system/agent-tools/internal/tools"
)

type ToolHandler struct {
	dispatcher interfaces.ToolDispatcher
}

func NewToolHandler(dispatcher interfaces.ToolDispatcher) *ToolHandler {
	return &ToolHandler{dispatcher: dispatcher}
}

func (h *ToolHandler) ListTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.dispatcher.Definitions()})
}

// InvokeTool answers 200 with the tool's envelope, whether or not the tool
// succeeded. The agent reads "success" to tell them apart.
func (h *ToolHandler) InvokeTool(c *gin.Context) {
	ctx := c.Request.Context()
	span := trace.SpanFromContext(ctx)
	name := c.Param("name")

	if !h.dispatcher.Has(name) {
		c.Data(http.StatusNotFound, "application/json; charset=utf-8",
			[]byte(tools.Failure(fmt.Errorf("unknown tool: %s", name))))
		return
	}

	args, err := io.ReadAll(io.LimitReader(c.Request.Body, tools.MaxArgsBytes+1))
	if err != nil {
		telemetry.Logger.Warn("Failed to read tool arguments", zap.String("tool", name), zap.Error(err))
		c.Data(http.StatusBadRequest, "application/json; charset=utf-8",
			[]byte(tools.Failure(fmt.Errorf("read arguments: %w", err))))
		return
	}
	if len(args) > tools.MaxArgsBytes {
		c.Data(http.StatusRequestEntityTooLarge, "application/json; charset=utf-8",
			[]byte(tools.Failure(fmt.Errorf("arguments exceed %d bytes", tools.MaxArgsBytes))))
		return
	}

	telemetry.Logger.Debug("Invoking tool",
		zap.String("tool", name),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)

	out := h.dispatcher.Dispatch(ctx, name, args)
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(out))
}
