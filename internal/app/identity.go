package app

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"threebr/internal/util"
	"threebr/pkg/auth"
	"threebr/pkg/domain"
)

// Session is one authenticated login: the user, their profile, and the token
// the client presents on later requests.
type Session struct {
	User    domain.User    `json:"user"`
	Profile domain.Profile `json:"profile"`
	Token   string         `json:"token"`
}

// SignUp registers a new user, creates their public profile, logs a joined
// activity, and issues a session. The profile write and the activity log are
// best-effort: registration already succeeded, so failures there are logged
// and the profile is healed on next update.
func (a *App) SignUp(email, password, displayName, handle string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	displayName = strings.TrimSpace(displayName)
	handle = normalizeHandle(handle)
	if email == "" || displayName == "" || handle == "" {
		return Session{}, ErrInvalidCredentials
	}
	if err := auth.ValidatePassword(password); err != nil {
		return Session{}, err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return Session{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return Session{}, ErrEmailExists
	}
	if _, taken, err := a.store.GetProfileByHandle(handle); err != nil {
		return Session{}, fmt.Errorf("check handle: %w", err)
	} else if taken {
		return Session{}, ErrHandleExists
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return Session{}, fmt.Errorf("save user: %w", err)
	}

	profile := domain.Profile{
		ID:          user.ID,
		DisplayName: displayName,
		Handle:      handle,
		CreatedAt:   now,
	}
	if err := a.store.SaveProfile(profile); err != nil {
		slog.Warn("profile write failed after signup", "userId", user.ID, "error", err)
	}
	if err := a.store.CreateActivity(domain.Activity{
		UserID:    user.ID,
		Type:      domain.ActivityJoined,
		CreatedAt: now,
	}); err != nil {
		slog.Warn("joined activity write failed", "userId", user.ID, "error", err)
	}

	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue session: %w", err)
	}
	return Session{User: user, Profile: profile, Token: token}, nil
}

// SignIn validates credentials and issues a session token.
func (a *App) SignIn(email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("issue session: %w", err)
	}
	profile, _, err := a.store.GetProfile(user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("lookup profile: %w", err)
	}
	return Session{User: user, Profile: profile, Token: token}, nil
}

// SignOut invalidates the session token.
func (a *App) SignOut(token string) error {
	return a.sessions.DeleteSession(token)
}

// UserFromToken resolves a session token to the authenticated user.
func (a *App) UserFromToken(token string) (domain.User, bool, error) {
	userID, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false, err
	}
	return a.store.GetUserByID(userID)
}

// Me returns the user's own profile.
func (a *App) Me(userID string) (domain.Profile, error) {
	profile, ok, err := a.store.GetProfile(userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("lookup profile: %w", err)
	}
	if !ok {
		return domain.Profile{}, ErrNotFound
	}
	return profile, nil
}

// UpdateProfile upserts display name and handle, healing a profile row that
// failed to write during signup.
func (a *App) UpdateProfile(userID, displayName, handle string) (domain.Profile, error) {
	displayName = strings.TrimSpace(displayName)
	handle = normalizeHandle(handle)
	if displayName == "" || handle == "" {
		return domain.Profile{}, ErrProfileIncomplete
	}
	if owner, taken, err := a.store.GetProfileByHandle(handle); err != nil {
		return domain.Profile{}, fmt.Errorf("check handle: %w", err)
	} else if taken && owner.ID != userID {
		return domain.Profile{}, ErrHandleExists
	}
	existing, ok, err := a.store.GetProfile(userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("lookup profile: %w", err)
	}
	profile := domain.Profile{
		ID:          userID,
		DisplayName: displayName,
		Handle:      handle,
		CreatedAt:   time.Now().UTC(),
	}
	if ok {
		profile.CreatedAt = existing.CreatedAt
	}
	if err := a.store.SaveProfile(profile); err != nil {
		return domain.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	return profile, nil
}

func normalizeHandle(handle string) string {
	return strings.TrimPrefix(strings.TrimSpace(strings.ToLower(handle)), "@")
}
