package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/seralt/askdoc/internal/pkg/errcode"
	appErr "github.com/seralt/askdoc/internal/pkg/errors"
	"github.com/seralt/askdoc/internal/pkg/response"
)

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
	switch {
	case appErr.IsNotFound(err):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case appErr.IsRetrievalUnavailable(err):
		response.Error(c, errcode.ErrRetrievalUnavailable, "retrieval unavailable")
	case appErr.IsGenerationFailed(err):
		response.Error(c, errcode.ErrGenerationFailed, "generation failed")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
