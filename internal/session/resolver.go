package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"foodsnap/internal/domain"
	"foodsnap/internal/identity"
	"foodsnap/internal/repository"
)

// ErrProfileBackend indica que la consulta del perfil falló (red/backend).
// Es el único fallo duro de la resolución; todo lo demás degrada a un
// usuario incompleto pero presente.
var ErrProfileBackend = errors.New("profile backend unavailable")

// Resolution es el resultado atómico de resolver una identidad.
type Resolution struct {
	User       domain.User
	Incomplete bool
}

// Resolver construye el User de aplicación a partir de una identidad
// autenticada, leyendo perfil y entitlement del backend de datos.
type Resolver struct {
	logger       *zap.Logger
	profiles     repository.ProfileRepository
	entitlements repository.EntitlementRepository
}

func NewResolver(logger *zap.Logger, profiles repository.ProfileRepository, entitlements repository.EntitlementRepository) *Resolver {
	return &Resolver{
		logger:       logger,
		profiles:     profiles,
		entitlements: entitlements,
	}
}

// Resolve es idempotente y nunca muta estado compartido: devuelve un valor
// que el caller instala de forma atómica.
func (r *Resolver) Resolve(ctx context.Context, id identity.Identity) (Resolution, error) {
	if r.profiles == nil {
		return Resolution{}, errors.New("resolver not configured")
	}
	if strings.TrimSpace(id.ID) == "" {
		return Resolution{}, errors.New("identity without id")
	}

	profile, err := r.profiles.GetByID(ctx, id.ID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		if r.logger != nil {
			r.logger.Warn("profile fetch failed", zap.Error(err), zap.String("user_id", id.ID))
		}
		return Resolution{}, ErrProfileBackend
	}

	// Perfil ausente o sin teléfono: usuario mínimo, ruta esperada para
	// logins sociales recién creados. No es un error.
	if errors.Is(err, pgx.ErrNoRows) || !profile.Complete() {
		return Resolution{User: r.minimalUser(id, profile), Incomplete: true}, nil
	}

	plan := domain.PlanFree
	var validUntil *time.Time
	if r.entitlements != nil {
		ent, entErr := r.entitlements.GetByUserID(ctx, id.ID)
		switch {
		case entErr == nil && ent.IsActive:
			plan = ent.Code
			validUntil = ent.ValidUntil
		case entErr != nil && !errors.Is(entErr, pgx.ErrNoRows):
			// Best effort: un entitlement inaccesible no tumba la resolución.
			if r.logger != nil {
				r.logger.Warn("entitlement fetch failed, defaulting to free",
					zap.Error(entErr), zap.String("user_id", id.ID))
			}
		}
	}

	name := profile.FullName
	if name == "" {
		name = fallbackName(id)
	}
	email := profile.Email
	if email == "" {
		email = id.Email
	}
	avatar := profile.AvatarURL
	if avatar == "" {
		avatar = fallbackAvatarURL(name)
	}

	user := domain.User{
		ID:             id.ID,
		Name:           name,
		Email:          email,
		Phone:          profile.PhoneE164,
		PublicID:       profile.PublicID,
		AvatarURL:      avatar,
		Plan:           plan,
		PlanValidUntil: validUntil,
		IsAdmin:        profile.IsAdmin,
	}
	return Resolution{User: user, Incomplete: false}, nil
}

// minimalUser arma un usuario presentable con lo que haya disponible.
// Plan forzado a free y admin forzado a false hasta completar el perfil.
func (r *Resolver) minimalUser(id identity.Identity, profile domain.Profile) domain.User {
	name := profile.FullName
	if name == "" {
		name = fallbackName(id)
	}
	email := profile.Email
	if email == "" {
		email = id.Email
	}
	avatar := profile.AvatarURL
	if avatar == "" {
		if avatar = id.AvatarURL; avatar == "" {
			avatar = fallbackAvatarURL(name)
		}
	}
	return domain.User{
		ID:        id.ID,
		Name:      name,
		Email:     email,
		PublicID:  profile.PublicID,
		AvatarURL: avatar,
		Plan:      domain.PlanFree,
		IsAdmin:   false,
	}
}

func fallbackName(id identity.Identity) string {
	if id.Name != "" {
		return id.Name
	}
	if i := strings.IndexByte(id.Email, '@'); i > 0 {
		return id.Email[:i]
	}
	return "User"
}

func fallbackAvatarURL(name string) string {
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s&background=059669&color=fff", url.QueryEscape(name))
}
