package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mindwell-backend/internal/auth"
	"mindwell-backend/pkg/logger"
)

const contextUserID = "user_id"

// signInMessage is the only thing an unauthenticated caller ever sees;
// auth internals are never surfaced.
const signInMessage = "Please sign in to continue."

// AuthRequired resolves the bearer credential into a user identity and
// stores it in the request context. Any verification failure aborts with
// 401 and the sign-in message.
func AuthRequired(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))

		userID, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthenticated) {
				logger.Warnf("Token verification failed: %v", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": signInMessage})
			return
		}

		c.Set(contextUserID, userID)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func userID(c *gin.Context) string {
	return c.GetString(contextUserID)
}
