package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/emprecords/emprecords/internal/audit"
)

// ServiceParams collects the dependencies of Service.
type ServiceParams struct {
	Store    CredentialStore
	Hasher   PasswordHasher
	Codec    TokenCodec
	TokenTTL time.Duration
	Audit    audit.Recorder
	Cache    Invalidator
	Logger   *slog.Logger

	// AuditTimeout bounds each audit write. Zero means defaultAuditTimeout.
	AuditTimeout time.Duration
}

const defaultAuditTimeout = 250 * time.Millisecond

// Service wraps authentication business rules.
type Service struct {
	store        CredentialStore
	hasher       PasswordHasher
	codec        TokenCodec
	ttl          time.Duration
	audit        audit.Recorder
	auditTimeout time.Duration
	cache        Invalidator
	validate     *validator.Validate
	logger       *slog.Logger
	dummyHash    string
}

// NewService constructs a new Service.
func NewService(p ServiceParams) (*Service, error) {
	if p.Store == nil || p.Hasher == nil || p.Codec == nil {
		return nil, errors.New("auth: store, hasher and codec are required")
	}
	if p.TokenTTL <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	if p.Audit == nil {
		p.Audit = audit.NopRecorder{}
	}
	if p.AuditTimeout <= 0 {
		p.AuditTimeout = defaultAuditTimeout
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	// Unknown usernames are verified against this hash so that lookups cost
	// the same whether or not the principal exists.
	dummy, err := p.Hasher.Hash("emprecords-unknown-principal")
	if err != nil {
		return nil, fmt.Errorf("auth: prepare dummy hash: %w", err)
	}
	return &Service{
		store:        p.Store,
		hasher:       p.Hasher,
		codec:        p.Codec,
		ttl:          p.TokenTTL,
		audit:        p.Audit,
		auditTimeout: p.AuditTimeout,
		cache:        p.Cache,
		validate:     NewValidator(),
		logger:       p.Logger.With(slog.String("component", "auth")),
		dummyHash:    dummy,
	}, nil
}

// Authenticate validates username/password credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Principal, error) {
	p, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			_, _ = s.hasher.Verify(password, s.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	ok, err := s.hasher.Verify(password, p.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash unreadable", slog.Int64("user_id", p.ID), slog.Any("error", err))
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if p.Disabled {
		return nil, ErrAccountDisabled
	}
	return p, nil
}

// Login authenticates the caller and issues a token whose subject is the username.
func (s *Service) Login(ctx context.Context, username, password string) (Token, error) {
	p, err := s.Authenticate(ctx, username, password)
	if err != nil {
		s.record(ctx, username, audit.ActionLoginFailed, "", audit.OutcomeFailure)
		return Token{}, err
	}
	tok, err := s.codec.Issue(p.Username, s.ttl)
	if err != nil {
		return Token{}, err
	}
	s.record(ctx, p.Username, audit.ActionLoginSucceeded, "", audit.OutcomeSuccess)
	return tok, nil
}

// Register creates a principal holding role.
func (s *Service) Register(ctx context.Context, role Role, c Credentials) (*Principal, error) {
	if !slices.Contains(KnownRoles, role) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if err := s.validate.Struct(c); err != nil {
		return nil, credentialsError(err)
	}
	hash, err := s.hasher.Hash(c.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	p, err := s.store.Save(ctx, &Principal{
		Username:     c.Username,
		PasswordHash: hash,
		Roles:        []Role{role},
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, actorFrom(ctx), audit.ActionPrincipalRegistered, p.Username, audit.OutcomeSuccess)
	s.logger.Info("principal registered", slog.String("username", p.Username), slog.String("role", string(role)))
	return p, nil
}

// PrincipalByID fetches a principal by id.
func (s *Service) PrincipalByID(ctx context.Context, id int64) (*Principal, error) {
	return s.store.FindByID(ctx, id)
}

// AssignRoles replaces the role set of principal id.
func (s *Service) AssignRoles(ctx context.Context, id int64, roles []Role) (*Principal, error) {
	set := make([]Role, 0, len(roles))
	for _, r := range roles {
		if !slices.Contains(KnownRoles, r) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, r)
		}
		if !slices.Contains(set, r) {
			set = append(set, r)
		}
	}
	if len(set) == 0 {
		return nil, ErrRolesRequired
	}
	return s.mutate(ctx, id, audit.ActionRolesAssigned, func(p *Principal) {
		p.Roles = set
	})
}

// SetDisabled enables or disables principal id. A disabled principal can
// neither log in nor use tokens it already holds.
func (s *Service) SetDisabled(ctx context.Context, id int64, disabled bool) (*Principal, error) {
	action := audit.ActionPrincipalEnabled
	if disabled {
		action = audit.ActionPrincipalDisabled
	}
	return s.mutate(ctx, id, action, func(p *Principal) {
		p.Disabled = disabled
	})
}

// Delete removes principal id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, p.Username)
	s.record(ctx, actorFrom(ctx), audit.ActionPrincipalDeleted, p.Username, audit.OutcomeSuccess)
	return nil
}

// Invalidate drops cached state for username after an external change,
// such as linking an employee record.
func (s *Service) Invalidate(ctx context.Context, username string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, username)
}

func (s *Service) mutate(ctx context.Context, id int64, action string, apply func(*Principal)) (*Principal, error) {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	apply(p)
	saved, err := s.store.Save(ctx, p)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, p.Username)
	s.record(ctx, actorFrom(ctx), action, saved.Username+"#"+strconv.FormatInt(saved.ID, 10), audit.OutcomeSuccess)
	return saved, nil
}

func (s *Service) invalidate(ctx context.Context, username string) {
	if err := s.Invalidate(ctx, username); err != nil {
		s.logger.Warn("principal cache invalidation failed", slog.String("username", username), slog.Any("error", err))
	}
}

// record is best effort. The write is detached from the request and bounded,
// so a slow or unreachable queue cannot stall authentication.
func (s *Service) record(ctx context.Context, actor, action, target, outcome string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.auditTimeout)
	defer cancel()
	err := s.audit.Record(ctx, audit.Event{
		Actor:      actor,
		Action:     action,
		Target:     target,
		Outcome:    outcome,
		RemoteAddr: audit.RemoteAddrFrom(ctx),
		At:         time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("audit record dropped", slog.String("action", action), slog.Any("error", err))
	}
}

func actorFrom(ctx context.Context) string {
	if ac, ok := AuthenticatedFrom(ctx); ok {
		return ac.Username()
	}
	return "system"
}

var _ Invalidator = (*Service)(nil)
