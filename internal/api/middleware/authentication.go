package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/dmi-project/dmi-gateway/internal/app"
	"github.com/dmi-project/dmi-gateway/internal/types"

	"github.com/gin-gonic/gin"
)

const (
	HeaderOwnerID = "X-Owner-ID"
	ownerIDKey    = "owner_id"
)

// ManagementAuthentication guards the key management routes. The caller is
// a trusted upstream holding the management token; it names the key owner
// it acts for in X-Owner-ID.
func ManagementAuthentication(ctx *gin.Context) {
	app := ctx.MustGet("app").(*app.App)
	expected := app.Config().Management.Token

	token, ok := strings.CutPrefix(ctx.Request.Header.Get("Authorization"), "Bearer ")
	if !ok || expected == "" || subtle.ConstantTimeCompare([]byte(strings.TrimSpace(token)), []byte(expected)) != 1 {
		abort(ctx, types.NewError(types.CodeMgmtUnauthorized, ""))
		return
	}

	owner := strings.TrimSpace(ctx.Request.Header.Get(HeaderOwnerID))
	if owner == "" {
		abort(ctx, types.NewError(types.CodeKeyInvalidRequest, "The X-Owner-ID header is required."))
		return
	}

	ctx.Set(ownerIDKey, owner)
	ctx.Next()
}

// OwnerID is the owner set by ManagementAuthentication.
func OwnerID(ctx *gin.Context) string {
	return ctx.GetString(ownerIDKey)
}

func abort(ctx *gin.Context, err error) {
	envelope := types.NewErrorEnvelope(err)
	ctx.AbortWithStatusJSON(envelope.HTTPStatus(), envelope)
}
