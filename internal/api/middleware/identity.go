package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/fanline/internal/auth"
	"github.com/d60-Lab/fanline/pkg/response"
)

const identityKey = "identity"

// Identity parses the x-user-payload header the gateway attaches and stores the
// result on the context. Requests without a usable identity are rejected.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, err := auth.FromPayloadHeader(c.GetHeader("x-user-payload"))
		if err != nil {
			response.Unauthorized(c, "authentication required")
			c.Abort()
			return
		}
		c.Set(identityKey, ident)
		c.Next()
	}
}

// IdentityFrom returns the identity set by the Identity middleware.
func IdentityFrom(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	ident, _ := v.(*auth.Identity)
	return ident
}
