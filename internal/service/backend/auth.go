package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kirinyoku/ticksy/internal/domain"
)

const minPasswordLen = 6

type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

type SignupInput struct {
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone"`
	Password  string      `json:"password"`
	Role      domain.Role `json:"role"`
}

// Signup registers a user. Attendees are signed in straight away and get an
// access token; organizers must log in separately, so their token is empty.
//
// Returns:
//   - ErrInvalidRole for admin or unknown roles.
//   - *ValidationError for missing or malformed fields.
//   - ErrEmailTaken when the email is already registered.
func (s *Service) Signup(ctx context.Context, in SignupInput) (domain.User, string, error) {
	const op = "service.backend.Signup"

	if in.Role == "" {
		in.Role = domain.RoleAttendee
	}
	if in.Role != domain.RoleAttendee && in.Role != domain.RoleOrganizer {
		return domain.User{}, "", fmt.Errorf("%s: %w", op, ErrInvalidRole)
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	v := validator{}
	v.check(strings.TrimSpace(in.FirstName) != "", "first_name", "is required")
	v.check(strings.TrimSpace(in.LastName) != "", "last_name", "is required")
	v.check(in.Email != "", "email", "is required")
	v.check(strings.Contains(in.Email, "@"), "email", "is invalid")
	v.check(strings.TrimSpace(in.Phone) != "", "phone", "is required")
	v.check(len(in.Password) >= minPasswordLen, "password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	if err := v.err(); err != nil {
		return domain.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.addUser(domain.User{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     in.Email,
		Phone:     strings.TrimSpace(in.Phone),
		Role:      in.Role,
	}, in.Password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)

	if user.Role != domain.RoleAttendee {
		return user, "", nil
	}

	token, err := s.issueToken(user)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	return user, token, nil
}

// SeedUser adds a user directly, bypassing role restrictions. It is how
// admins come into existence.
func (s *Service) SeedUser(u domain.User, password string) (domain.User, error) {
	const op = "service.backend.SeedUser"

	if !u.Role.Valid() {
		return domain.User{}, fmt.Errorf("%s: %w", op, ErrInvalidRole)
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if !strings.Contains(u.Email, "@") {
		return domain.User{}, fmt.Errorf("%s: %w", op, &ValidationError{Fields: map[string]string{"email": "is invalid"}})
	}

	user, err := s.addUser(u, password)
	if err != nil {
		return domain.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Service) addUser(u domain.User, password string) (domain.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.PasswordCost)
	if err != nil {
		return domain.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[u.Email]; taken {
		return domain.User{}, ErrEmailTaken
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.users[u.ID] = &userRecord{user: u, hash: hash}
	s.byEmail[u.Email] = u.ID

	return u, nil
}

// Login checks credentials and issues an access token. rlKey identifies the
// client for rate limiting.
func (s *Service) Login(ctx context.Context, email, password, rlKey string) (domain.User, string, error) {
	const op = "service.backend.Login"

	if s.limiter != nil {
		allowed, _, retryAfter, err := s.limiter.Allow(ctx, "login:"+rlKey)
		if err != nil {
			s.logger.Warn("login rate limiter failed", "error", err)
		} else if !allowed {
			return domain.User{}, "", fmt.Errorf("%s: %w", op, &RateLimitError{RetryAfter: retryAfter})
		}
	}

	s.mu.RLock()
	rec, ok := s.users[s.byEmail[strings.ToLower(strings.TrimSpace(email))]]
	s.mu.RUnlock()

	if !ok || bcrypt.CompareHashAndPassword(rec.hash, []byte(password)) != nil {
		return domain.User{}, "", fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := s.issueToken(rec.user)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("%s: %w", op, err)
	}

	return rec.user, token, nil
}

func (s *Service) issueToken(u domain.User) (string, error) {
	now := s.now()
	claims := &Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.TokenSecret)
}

// Authenticate resolves a bearer token to its principal. Expired tokens,
// bad signatures and tokens of deleted users all yield ErrUnauthenticated.
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	const op = "service.backend.Authenticate"

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) { return s.cfg.TokenSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUnauthenticated, err)
	}

	s.mu.RLock()
	rec, ok := s.users[claims.Subject]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	return &Principal{UserID: rec.user.ID, Role: rec.user.Role}, nil
}

func (s *Service) Me(ctx context.Context, p *Principal) (domain.User, error) {
	const op = "service.backend.Me"

	if p == nil {
		return domain.User{}, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[p.UserID]
	if !ok {
		return domain.User{}, fmt.Errorf("%s: %w", op, ErrUnauthenticated)
	}

	return rec.user, nil
}

// Users lists every account ordered by email. Admin only.
func (s *Service) Users(ctx context.Context, p *Principal) ([]domain.User, error) {
	const op = "service.backend.Users"

	if !p.is(domain.RoleAdmin) {
		return nil, fmt.Errorf("%s: %w", op, ErrForbidden)
	}

	s.mu.RLock()
	out := make([]domain.User, 0, len(s.users))
	for _, rec := range s.users {
		out = append(out, rec.user)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.User) int { return strings.Compare(a.Email, b.Email) })

	return out, nil
}
