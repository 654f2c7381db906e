package api

import (
	"strconv"

	"github.com/dmi-project/dmi-gateway/internal/app"
	"github.com/dmi-project/dmi-gateway/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	HeaderAPIKey             = "X-API-Key"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
)

func getApp(c *gin.Context) *app.App {
	return c.MustGet("app").(*app.App)
}

// respondError writes err as an envelope. Uncoded errors are logged and
// reach the caller only as a generic processing error.
func respondError(c *gin.Context, err error) {
	envelope := types.NewErrorEnvelope(err)
	if envelope.Code == types.CodeProcessingError {
		getApp(c).Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(envelope.HTTPStatus(), envelope)
}

func respondOK(c *gin.Context, status int, result any) {
	c.JSON(status, types.NewSuccessEnvelope(types.CodeSuccess, result, nil))
}

func setQuotaHeaders(c *gin.Context, limit, remaining int) {
	c.Header(HeaderRateLimitLimit, strconv.Itoa(limit))
	c.Header(HeaderRateLimitRemaining, strconv.Itoa(remaining))
}
