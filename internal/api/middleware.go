package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/savegress/investdash/pkg/models"
	"github.com/shopspring/decimal"
)

type contextKey string

const userKey contextKey = "user"

// AuthMiddleware validates the bearer JWT and puts the caller's profile in the
// request context. Browsers cannot set headers on websocket handshakes, so the
// token may also arrive as the token query parameter.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				respondError(w, http.StatusUnauthorized, "Missing authorization header")
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				respondError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				respondError(w, http.StatusUnauthorized, "Invalid token claims")
				return
			}

			profile, ok := profileFromClaims(claims)
			if !ok {
				respondError(w, http.StatusUnauthorized, "Invalid user ID in token")
				return
			}
			profile.Token = tokenString

			ctx := context.WithValue(r.Context(), userKey, profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated profile of the request
func UserFromContext(ctx context.Context) (models.UserProfile, bool) {
	profile, ok := ctx.Value(userKey).(models.UserProfile)
	return profile, ok
}

func bearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, true
	}
	return "", false
}

// profileFromClaims reads the user id from sub and the account figures the
// backend signs into the token.
func profileFromClaims(claims jwt.MapClaims) (models.UserProfile, bool) {
	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return models.UserProfile{}, false
	}
	return models.UserProfile{
		ID:             userID,
		ROI:            decimalClaim(claims["roi"]),
		AccountBalance: decimalClaim(claims["accountBalance"]),
	}, true
}

func decimalClaim(v interface{}) decimal.Decimal {
	switch value := v.(type) {
	case float64:
		return decimal.NewFromFloat(value)
	case string:
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return decimal.Zero
}
