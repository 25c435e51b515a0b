package reports

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/worksla/worksla-web/internal/apiclient"
)

// Bundle is everything the reports page shows for one set of filters.
type Bundle struct {
	Filters      Filters
	SLA          SLAReport
	Productivity ProductivityReport
	GeneratedAt  time.Time
}

// Service loads report bundles.
type Service struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs a Service.
func NewService(backend Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, logger: logger, now: time.Now}
}

// Load fetches the SLA and productivity reports concurrently. Either failing
// fails the bundle.
func (s *Service) Load(ctx context.Context, creds *apiclient.Credentials, f Filters) (Bundle, error) {
	bundle := Bundle{Filters: f}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sla, err := s.backend.SLA(gctx, creds, f)
		if err != nil {
			return fmt.Errorf("sla report: %w", err)
		}
		bundle.SLA = sla
		return nil
	})
	g.Go(func() error {
		prod, err := s.backend.Productivity(gctx, creds, f)
		if err != nil {
			return fmt.Errorf("productivity report: %w", err)
		}
		bundle.Productivity = prod
		return nil
	})
	if err := g.Wait(); err != nil {
		return Bundle{}, err
	}
	bundle.GeneratedAt = s.now()
	s.logger.Debug("reports loaded",
		slog.String("from", f.From.Format(time.DateOnly)),
		slog.String("to", f.To.Format(time.DateOnly)),
		slog.Int("groups", len(bundle.Productivity.Data)))
	return bundle, nil
}
