package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fluentprep/fluentprep/internal/config"
	"github.com/fluentprep/fluentprep/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Identity is the resolved caller of a guarded request. A failed
// resolution is expressed as IsValid=false with zeroed fields, never as
// an error, so callers have a single branch to check.
type Identity struct {
	UserID   string          `json:"user_id"`
	Email    string          `json:"email"`
	PlanTier models.PlanTier `json:"plan_tier"`
	IsValid  bool            `json:"is_valid"`
}

// PlanSource resolves a user's plan tier from a profile record
type PlanSource interface {
	PlanTier(ctx context.Context, userID string) (models.PlanTier, error)
}

// Claims represents JWT claims
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Resolver verifies bearer credentials and resolves the caller's plan
type Resolver struct {
	config *config.JWTConfig
	plans  PlanSource
}

// NewResolver creates a new identity resolver
func NewResolver(cfg *config.JWTConfig, plans PlanSource) *Resolver {
	return &Resolver{config: cfg, plans: plans}
}

const bearerPrefix = "Bearer "

// Verify resolves the identity behind an Authorization header value.
// A missing or malformed header is rejected locally without any lookup.
// Token verification failure of any kind yields an invalid identity.
// A profile lookup failure degrades the plan to free rather than
// failing authentication.
func (r *Resolver) Verify(ctx context.Context, authHeader string) Identity {
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return Identity{}
	}
	token := authHeader[len(bearerPrefix):]

	claims, err := r.validateToken(token)
	if err != nil {
		return Identity{}
	}

	tier := models.PlanFree
	if r.plans != nil {
		resolved, err := r.plans.PlanTier(ctx, claims.UserID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", claims.UserID).Msg("Plan lookup failed, defaulting to free")
		} else if resolved != "" {
			tier = resolved
		}
	}

	return Identity{
		UserID:   claims.UserID,
		Email:    claims.Email,
		PlanTier: tier,
		IsValid:  true,
	}
}

// validateToken parses and validates an access token
func (r *Resolver) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(r.config.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject != "access" {
		return nil, errors.New("not an access token")
	}
	return claims, nil
}

// PostgresPlanSource reads plan tiers from the profiles table
type PostgresPlanSource struct {
	db *pgxpool.Pool
}

// NewPostgresPlanSource creates a Postgres-backed plan source
func NewPostgresPlanSource(db *pgxpool.Pool) *PostgresPlanSource {
	return &PostgresPlanSource{db: db}
}

func (s *PostgresPlanSource) PlanTier(ctx context.Context, userID string) (models.PlanTier, error) {
	var tier models.PlanTier
	err := s.db.QueryRow(ctx, `SELECT plan_tier FROM profiles WHERE id = $1`, userID).Scan(&tier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PlanFree, nil
		}
		return "", fmt.Errorf("failed to look up plan tier: %w", err)
	}
	return tier, nil
}
