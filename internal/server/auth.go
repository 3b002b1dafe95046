package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/keshav-const/promptlens-sub000/internal/auditcontext"
	identitydomain "github.com/keshav-const/promptlens-sub000/internal/identity/domain"
	"github.com/keshav-const/promptlens-sub000/internal/token"
)

const contextPrincipalKey = "principal"

// claimCacheTTL bounds how long a verified credential skips
// re-verification. Claims are immutable once issued, so the only thing
// the TTL protects is expiry precision.
const claimCacheTTL = 2 * time.Minute

// QuotaMode states whether the authenticated request was admitted
// through quota enforcement or around it. The mode is fixed by the route
// wiring; handlers cannot flip it.
type QuotaMode int

const (
	QuotaEnforced QuotaMode = iota
	QuotaBypassed
)

// Principal is the authenticated identity attached to a request.
type Principal struct {
	User   *identitydomain.User
	Claims token.Claims
	Mode   QuotaMode
}

// AuthRequired authenticates the bearer credential and enforces the
// plan quota before the handler runs.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return s.authenticate(QuotaEnforced)
}

// AuthRequiredNoQuota authenticates without enforcing quota. Read-only
// endpoints use it so an exhausted user can still inspect their account.
func (s *Server) AuthRequiredNoQuota() gin.HandlerFunc {
	return s.authenticate(QuotaBypassed)
}

func (s *Server) authenticate(mode QuotaMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			s.incVerification("missing")
			AbortWithError(c, ErrUnauthorized)
			return
		}

		claims, err := s.verifyCredential(raw)
		if err != nil {
			s.incVerification("rejected")
			AbortWithError(c, err)
			return
		}
		s.incVerification("ok")

		ctx := c.Request.Context()
		user, err := s.identitySvc.FindOrCreate(ctx, claims.Email, claims.Name)
		if err != nil {
			if errors.Is(err, identitydomain.ErrInvalidEmail) {
				AbortWithError(c, token.ErrMissingClaim)
				return
			}
			AbortWithError(c, err)
			return
		}

		user, err = s.quotaSvc.ResetIfStale(ctx, user)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		if mode == QuotaEnforced {
			if err := s.quotaSvc.CheckAndReserve(ctx, user); err != nil {
				AbortWithError(c, err)
				return
			}
		}

		requestID := c.Writer.Header().Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = auditcontext.WithRequestID(ctx, requestID)
		ctx = auditcontext.WithActor(ctx, "user", user.ID.String())
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Set(contextPrincipalKey, &Principal{User: user, Claims: claims, Mode: mode})
		c.Next()
	}
}

// verifyCredential checks the TTL cache before running full
// verification. Expiry is still honored: a cached claim past its
// ExpiresAt is rejected without a second parse.
func (s *Server) verifyCredential(raw string) (token.Claims, error) {
	if claims, ok := s.claimCache.Get(raw); ok {
		if !s.clk.Now().Before(claims.ExpiresAt) {
			return token.Claims{}, token.ErrExpired
		}
		return claims, nil
	}

	claims, err := s.verifier.Verify(raw)
	if err != nil {
		return token.Claims{}, err
	}

	ttl := claimCacheTTL
	if until := claims.ExpiresAt.Sub(s.clk.Now()); until < ttl {
		ttl = until
	}
	if ttl > 0 {
		s.claimCache.Set(raw, claims, ttl)
	}
	return claims, nil
}

func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}

func principalFrom(c *gin.Context) (*Principal, bool) {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return nil, false
	}
	principal, ok := value.(*Principal)
	return principal, ok
}

func (s *Server) incVerification(result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncTokenVerification(result)
}
