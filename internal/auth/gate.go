package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// GateOutcome is the terminal state of the Gate for one request.
type GateOutcome int

const (
	// OutcomeAbsent means no bearer token was presented.
	OutcomeAbsent GateOutcome = iota
	// OutcomeRejected means a token was presented but did not resolve to an
	// active principal.
	OutcomeRejected
	// OutcomeEstablished means an AuthenticatedContext was attached.
	OutcomeEstablished
)

func (o GateOutcome) String() string {
	switch o {
	case OutcomeAbsent:
		return "absent"
	case OutcomeRejected:
		return "rejected"
	case OutcomeEstablished:
		return "established"
	default:
		return "unknown"
	}
}

// GateObserver receives one outcome per gated request.
type GateObserver interface {
	ObserveGate(outcome string)
}

// Gate turns a bearer token into an AuthenticatedContext. It never writes a
// response: unauthenticated requests continue without a context and are
// refused later by the route policy.
type Gate struct {
	codec    TokenCodec
	reader   CredentialReader
	logger   *slog.Logger
	observer GateObserver
}

// GateOption customizes a Gate.
type GateOption func(*Gate)

// WithGateObserver reports outcomes to o.
func WithGateObserver(o GateObserver) GateOption {
	return func(g *Gate) { g.observer = o }
}

// NewGate constructs a Gate.
func NewGate(codec TokenCodec, reader CredentialReader, logger *slog.Logger, opts ...GateOption) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{codec: codec, reader: reader, logger: logger.With(slog.String("component", "gate"))}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve evaluates the request's credentials without modifying it.
func (g *Gate) Resolve(r *http.Request) (*AuthenticatedContext, GateOutcome) {
	raw, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, OutcomeAbsent
	}
	claims, err := g.codec.Verify(raw)
	if err != nil {
		g.logger.Debug("token rejected", slog.Any("error", err))
		return nil, OutcomeRejected
	}
	p, err := g.reader.FindByUsername(r.Context(), claims.Subject)
	if err != nil {
		if !errors.Is(err, ErrPrincipalNotFound) {
			g.logger.Error("resolve principal", slog.String("subject", claims.Subject), slog.Any("error", err))
		}
		return nil, OutcomeRejected
	}
	if p.Disabled {
		g.logger.Debug("token for disabled principal", slog.String("subject", claims.Subject))
		return nil, OutcomeRejected
	}
	return newAuthenticatedContext(p), OutcomeEstablished
}

// Middleware runs the Gate once per request.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if gated(ctx) {
			next.ServeHTTP(w, r)
			return
		}
		ac, outcome := g.Resolve(r)
		if g.observer != nil {
			g.observer.ObserveGate(outcome.String())
		}
		ctx = markGated(ctx)
		if outcome == OutcomeEstablished {
			ctx = WithAuthenticated(ctx, ac)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
