package conversion

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"
)

// DefaultValue is used when a request entry carries no value.
const DefaultValue = 1.0

// DefaultConcurrency bounds the number of entries of one batch resolved at
// the same time.
const DefaultConcurrency = 8

// Service adapts request entries to the resolver.
type Service struct {
	resolver    *Resolver
	concurrency int
	logger      zerolog.Logger
}

// NewService creates a new conversion service.
func NewService(resolver *Resolver, concurrency int, logger zerolog.Logger) *Service {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Service{resolver: resolver, concurrency: concurrency, logger: logger}
}

// Convert resolves a single entry.
func (s *Service) Convert(ctx context.Context, req Request) Response {
	if req.decodeErr != nil {
		s.logFailure(ctx, req, req.decodeErr)
		return newResponse(req.ID, nil, req.decodeErr)
	}
	value, err := parseValue(req.Value)
	if err != nil {
		s.logFailure(ctx, req, err)
		return newResponse(req.ID, nil, err)
	}
	res, err := s.resolver.Resolve(req.Loinc, req.Unit, value)
	if err != nil {
		s.logFailure(ctx, req, err)
	}
	return newResponse(req.ID, res, err)
}

// ResolveBatch resolves every entry and returns the responses in input
// order. A failing entry never affects the others. The boolean reports
// whether any entry failed.
func (s *Service) ResolveBatch(ctx context.Context, reqs []Request) ([]Response, bool) {
	out := make([]Response, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range reqs {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				out[i] = Response{ID: reqs[i].ID, Error: fmt.Sprintf("request cancelled: %v", err)}
				return nil
			}
			out[i] = s.Convert(gctx, reqs[i])
			return nil
		})
	}
	_ = g.Wait()

	failed := false
	for i := range out {
		if out[i].Failed() {
			failed = true
			break
		}
	}
	return out, failed
}

func (s *Service) logFailure(ctx context.Context, req Request, err error) {
	ev := s.logger.Warn().Err(err).Str("loinc", req.Loinc).Str("unit", req.Unit)
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		ev = ev.Str("request_id", id)
	}
	ev.Msg("conversion failed")
}

// parseValue accepts JSON numbers and numeric strings.
func parseValue(v interface{}) (float64, error) {
	if v == nil {
		return DefaultValue, nil
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, &Error{Kind: ErrInvalidValue, Value: fmt.Sprint(v), Err: err}
	}
	return f, nil
}

type requestIDKey struct{}

// WithRequestID attaches a request id to ctx for failure logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}
