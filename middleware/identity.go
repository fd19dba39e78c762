package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upb/cluster-policy-builder/models"
	"github.com/upb/cluster-policy-builder/services/workspace"
	"github.com/upb/cluster-policy-builder/utils"
	"go.uber.org/zap"
)

const (
	// ForwardedTokenHeader carries the caller's workspace token when the app
	// runs behind the workspace proxy.
	ForwardedTokenHeader = "X-Forwarded-Access-Token"

	// SessionIDHeader selects the editor session of a request
	SessionIDHeader = "X-Session-ID"
)

// Claims is the subset of the forwarded token used for attribution
type Claims struct {
	jwt.RegisteredClaims
	Email             string `json:"email,omitempty"`
	UserName          string `json:"user_name,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
}

// IdentityMiddleware resolves who is calling and which editor session the
// request belongs to. The token signature is not verified here; the
// workspace verifies it on every forwarded call. Drafts are keyed by subject
// and session id, and a session id is never derived from the subject alone.
type IdentityMiddleware struct {
	logger *zap.Logger
}

// NewIdentityMiddleware creates a new identity middleware
func NewIdentityMiddleware(logger *zap.Logger) *IdentityMiddleware {
	return &IdentityMiddleware{logger: logger}
}

// Handler returns the HTTP middleware handler
func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		user := models.Anonymous
		token := extractToken(r)
		if token != "" {
			ctx = workspace.WithToken(ctx, token)
			parsed, err := parseClaims(token)
			if err != nil {
				m.logger.Debug("forwarded token is not a readable JWT",
					zap.String("request_id", requestID),
					zap.Error(err),
				)
			} else {
				user = parsed
			}
		}

		sessionID := r.Header.Get(SessionIDHeader)
		if sessionID != "" {
			if err := utils.ValidateSessionID(sessionID); err != nil {
				m.logger.Warn("invalid session id",
					zap.String("request_id", requestID),
					zap.Error(err),
				)
				_ = utils.WriteBadRequest(w, "Invalid session id", nil)
				return
			}
		} else {
			sessionID = uuid.New().String()
		}

		ctx = WithUser(ctx, user)
		ctx = WithSessionID(ctx, SessionKey(user, sessionID))
		w.Header().Set(SessionIDHeader, sessionID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionKey scopes a caller supplied session id to the caller's subject,
// so the same header value names a different draft for every subject.
// Session ids never contain ':', which keeps the scope unambiguous.
func SessionKey(user models.User, sessionID string) string {
	subject := user.Subject
	if user.IsAnonymous() {
		subject = models.Anonymous.Subject
	}
	return subject + ":" + sessionID
}

// parseClaims reads the caller identity without verifying the signature
func parseClaims(token string) (models.User, error) {
	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return models.Anonymous, err
	}
	if claims.Subject == "" {
		return models.Anonymous, jwt.ErrTokenRequiredClaimMissing
	}

	name := claims.UserName
	if name == "" {
		name = claims.PreferredUsername
	}
	return models.User{
		Subject:  claims.Subject,
		UserName: name,
		Email:    claims.Email,
	}, nil
}

// extractToken extracts the workspace token from the request. The forwarded
// header wins over Authorization.
func extractToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(ForwardedTokenHeader)); token != "" {
		return token
	}
	return extractBearerToken(r.Header.Get("Authorization"))
}

// extractBearerToken extracts token from "Bearer <token>" format
func extractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
