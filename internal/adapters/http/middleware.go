package http

import (
	"crypto/subtle"

	"github.com/dkeye/Relay/internal/adapters/signal"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	sessionKey          = "user_code"
	identityHeader      = "X-User-Code"
	identityQuery       = "userCode"
	internalTokenHeader = "X-Internal-Token"
)

// IdentityMiddleware resolves the caller from the cookie session. With
// trustHeader set, an upstream gateway may assert it instead.
func IdentityMiddleware(trustHeader bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		code, _ := sessions.Default(c).Get(sessionKey).(string)
		if code == "" && trustHeader {
			code = c.GetHeader(identityHeader)
			if code == "" {
				code = c.Query(identityQuery)
			}
		}
		identity, err := domain.ParseIdentityCode(code)
		if err != nil {
			abortWithError(c, domain.ErrUnauthenticated)
			return
		}
		c.Set(signal.IdentityKey, string(identity))
		c.Next()
	}
}

func InternalTokenMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(internalTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			abortWithError(c, domain.ErrUnauthenticated)
			return
		}
		c.Next()
	}
}

func identity(c *gin.Context) domain.IdentityCode {
	return domain.IdentityCode(c.GetString(signal.IdentityKey))
}
