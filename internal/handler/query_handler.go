package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seralt/askdoc/internal/pkg/errcode"
	"github.com/seralt/askdoc/internal/pkg/response"
	"github.com/seralt/askdoc/internal/service"
	"github.com/seralt/askdoc/internal/synth"
)

type QueryHandler struct {
	querier *service.QueryService
}

func NewQueryHandler(querier *service.QueryService) *QueryHandler {
	return &QueryHandler{querier: querier}
}

type queryRequest struct {
	Query   string            `json:"query"`
	TopK    int               `json:"top_k"`
	Filters map[string]string `json:"filters"`
	Stream  bool              `json:"stream"`
}

func (h *QueryHandler) Retrieve(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	result, err := h.querier.Retrieve(c.Request.Context(), req.Query, req.TopK, req.Filters)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}

// Answer serves both batch and streaming answers. With stream=false the
// whole answer is returned in the usual envelope; with stream=true the
// response is newline-delimited JSON events, one per line, ending with an
// end event carrying the full repaired answer.
func (h *QueryHandler) Answer(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if !req.Stream {
		result, err := h.querier.Answer(c.Request.Context(), req.Query, req.TopK, req.Filters)
		if err != nil {
			handleError(c, err)
			return
		}
		response.Success(c, result)
		return
	}
	h.answerStream(c, req)
}

type streamEvent struct {
	synth.Event
	Quality      string `json:"quality,omitempty"`
	SearchMethod string `json:"search_method,omitempty"`
}

func (h *QueryHandler) answerStream(c *gin.Context, req queryRequest) {
	ctx := c.Request.Context()
	events, result, err := h.querier.AnswerStream(ctx, req.Query, req.TopK, req.Filters)
	if err != nil {
		handleError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "application/x-ndjson")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.WriteHeader(http.StatusOK)
	flusher, _ := c.Writer.(http.Flusher)
	enc := json.NewEncoder(c.Writer)

	writeEvent := func(ev streamEvent) bool {
		if err := enc.Encode(ev); err != nil {
			logutil.GetLogger(ctx).Debug("stream write failed", zap.Error(err))
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	for ev := range events {
		out := streamEvent{Event: ev}
		if ev.Type == synth.EventEnd {
			out.Quality = string(result.Quality)
			out.SearchMethod = result.SearchMethod
		}
		if !writeEvent(out) {
			// Client gone; drain so the producer goroutine can exit.
			for range events {
			}
			return
		}
	}
}
