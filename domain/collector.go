package domain

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/aluiziolira/go-topical-authority/models"
	"golang.org/x/sync/errgroup"
)

// Collector gathers authority metrics and registration age for a domain.
type Collector struct {
	provider MetricsProvider
	ages     AgeLookup
	timeout  time.Duration
	now      func() time.Time
}

// NewCollector builds a collector. Either collaborator may be nil.
func NewCollector(provider MetricsProvider, ages AgeLookup, timeout time.Duration) *Collector {
	return &Collector{provider: provider, ages: ages, timeout: timeout, now: time.Now}
}

// Collect never fails: each part reports its own status.
func (c *Collector) Collect(ctx context.Context, host string) models.DomainMetrics {
	registrable := Registrable(host)
	metrics := models.DomainMetrics{
		Domain:    registrable,
		Status:    models.StatusUnavailable,
		Message:   "no metrics provider configured",
		AgeStatus: models.StatusUnavailable,
		Structure: Structure(host),
	}

	var (
		authority models.DomainMetrics
		reg       *Registration
		ageErr    error
	)

	g, gctx := errgroup.WithContext(ctx)
	if c.provider != nil {
		g.Go(func() error {
			callCtx, cancel := c.withTimeout(gctx)
			defer cancel()
			authority = c.provider.Metrics(callCtx, registrable)
			return nil
		})
	}
	if c.ages != nil {
		g.Go(func() error {
			callCtx, cancel := c.withTimeout(gctx)
			defer cancel()
			reg, ageErr = c.ages.Lookup(callCtx, registrable)
			return nil
		})
	}
	_ = g.Wait()

	if c.provider != nil {
		metrics.Provider = authority.Provider
		metrics.Status = authority.Status
		metrics.Message = authority.Message
		metrics.DomainAuthority = authority.DomainAuthority
		metrics.PageAuthority = authority.PageAuthority
		metrics.SpamScore = authority.SpamScore
		metrics.RootDomainsLinking = authority.RootDomainsLinking
		metrics.ExternalLinks = authority.ExternalLinks
	}

	switch {
	case c.ages == nil:
		metrics.AgeMessage = "no registration lookup configured"
	case ageErr != nil:
		metrics.AgeStatus = models.StatusError
		metrics.AgeMessage = ageErr.Error()
	default:
		created := reg.Created
		years := math.Round(c.now().Sub(created).Hours()/24/365.25*100) / 100
		metrics.CreationDate = &created
		metrics.DomainAgeYears = &years
		metrics.Registrar = reg.Registrar
		metrics.AgeStatus = models.StatusSuccess
	}

	if metrics.Status != models.StatusSuccess {
		slog.Warn("domain metrics unavailable",
			slog.String("domain", registrable),
			slog.String("status", string(metrics.Status)),
			slog.String("message", metrics.Message),
		)
	}
	if metrics.AgeStatus == models.StatusError {
		slog.Warn("domain age lookup failed",
			slog.String("domain", registrable),
			slog.String("message", metrics.AgeMessage),
		)
	}
	return metrics
}

func (c *Collector) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
