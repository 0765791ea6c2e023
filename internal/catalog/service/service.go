package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"product-catalog/internal/catalog"
	"product-catalog/internal/catalog/validation"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "product-catalog/service"

// Repository is the storage gateway the service persists products through.
type Repository interface {
	FindAll(ctx context.Context) ([]catalog.Product, error)
	FindPage(ctx context.Context, limit, offset int) ([]catalog.Product, error)
	Count(ctx context.Context) (int64, error)
	FindByID(ctx context.Context, id int64) (catalog.Product, error)
	Persist(ctx context.Context, p *catalog.Product) error
	Remove(ctx context.Context, id int64) error
}

type Publisher interface {
	Publish(ctx context.Context, event catalog.ProductEvent) error
}

// DeleteAuthorizer issues and checks the per-record tokens that guard deletion.
type DeleteAuthorizer interface {
	Issue(id int64) (string, error)
	Verify(id int64, token string) bool
}

type Metrics struct {
	Created            prometheus.Counter
	Updated            prometheus.Counter
	Deleted            prometheus.Counter
	ValidationFailed   prometheus.Counter
	DeleteUnauthorized prometheus.Counter
}

func NewMetrics() Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	}
	return Metrics{
		Created:            counter("catalog_products_created_total", "Total number of products created"),
		Updated:            counter("catalog_products_updated_total", "Total number of products updated"),
		Deleted:            counter("catalog_products_deleted_total", "Total number of products deleted"),
		ValidationFailed:   counter("catalog_validation_failures_total", "Total number of rejected create or update requests"),
		DeleteUnauthorized: counter("catalog_delete_unauthorized_total", "Total number of deletes refused for a bad token"),
	}
}

func (m Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Created, m.Updated, m.Deleted, m.ValidationFailed, m.DeleteUnauthorized}
}

type Service struct {
	repo      Repository
	publisher Publisher
	tokens    DeleteAuthorizer
	logger    *slog.Logger
	metrics   Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

func New(repo Repository, publisher Publisher, tokens DeleteAuthorizer, logger *slog.Logger, metrics Metrics) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		tokens:    tokens,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
}

func (s *Service) CreateProduct(ctx context.Context, in catalog.Input) (catalog.Product, error) {
	ctx, span := s.tracer.Start(ctx, "Service.CreateProduct")
	defer span.End()

	product := catalog.NewProduct(in, s.timestamp())
	if err := s.validate(ctx, span, product); err != nil {
		return catalog.Product{}, err
	}

	if err := s.repo.Persist(ctx, &product); err != nil {
		recordError(span, err)
		return catalog.Product{}, fmt.Errorf("repo persist: %w", err)
	}
	span.SetAttributes(attribute.Int64("product.id", product.ID))

	s.publish(ctx, catalog.EventCreated, product, product.CreatedAt)
	s.metrics.Created.Inc()
	return product, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	ctx, span := s.tracer.Start(ctx, "Service.GetProduct", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			span.SetStatus(codes.Error, "not found")
			return catalog.Product{}, catalog.ErrNotFound
		}
		recordError(span, err)
		return catalog.Product{}, fmt.Errorf("repo find: %w", err)
	}
	return product, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, in catalog.Input) (catalog.Product, error) {
	ctx, span := s.tracer.Start(ctx, "Service.UpdateProduct", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			span.SetStatus(codes.Error, "not found")
			return catalog.Product{}, catalog.ErrNotFound
		}
		recordError(span, err)
		return catalog.Product{}, fmt.Errorf("repo find: %w", err)
	}

	in.ApplyTo(&product)
	if err := s.validate(ctx, span, product); err != nil {
		return catalog.Product{}, err
	}

	updatedAt := s.timestamp()
	product.UpdatedAt = &updatedAt
	if err := s.repo.Persist(ctx, &product); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.Product{}, catalog.ErrNotFound
		}
		recordError(span, err)
		return catalog.Product{}, fmt.Errorf("repo persist: %w", err)
	}

	s.publish(ctx, catalog.EventUpdated, product, updatedAt)
	s.metrics.Updated.Inc()
	return product, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64, token string) error {
	ctx, span := s.tracer.Start(ctx, "Service.DeleteProduct", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			span.SetStatus(codes.Error, "not found")
			return catalog.ErrNotFound
		}
		recordError(span, err)
		return fmt.Errorf("repo find: %w", err)
	}

	if !s.tokens.Verify(id, token) {
		span.SetStatus(codes.Error, "delete unauthorized")
		s.logger.WarnContext(ctx, "delete token rejected", "product_id", id)
		s.metrics.DeleteUnauthorized.Inc()
		return catalog.ErrDeleteUnauthorized
	}

	if err := s.repo.Remove(ctx, id); err != nil {
		recordError(span, err)
		return fmt.Errorf("repo remove: %w", err)
	}

	s.publish(ctx, catalog.EventDeleted, product, s.timestamp())
	s.metrics.Deleted.Inc()
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	ctx, span := s.tracer.Start(ctx, "Service.ListProducts")
	defer span.End()

	items, err := s.repo.FindAll(ctx)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("repo find all: %w", err)
	}
	span.SetAttributes(attribute.Int("product.count", len(items)))
	return items, nil
}

// ListProductsPage returns one page of products in insertion order and the total count.
func (s *Service) ListProductsPage(ctx context.Context, limit, offset int) ([]catalog.Product, int64, error) {
	ctx, span := s.tracer.Start(ctx, "Service.ListProductsPage",
		trace.WithAttributes(attribute.Int("page.limit", limit), attribute.Int("page.offset", offset)))
	defer span.End()

	items, err := s.repo.FindPage(ctx, limit, offset)
	if err != nil {
		recordError(span, err)
		return nil, 0, fmt.Errorf("repo find page: %w", err)
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		recordError(span, err)
		return nil, 0, fmt.Errorf("repo count: %w", err)
	}
	return items, total, nil
}

// DeleteToken returns the token a caller must present to delete the product with id.
func (s *Service) DeleteToken(id int64) (string, error) {
	token, err := s.tokens.Issue(id)
	if err != nil {
		return "", fmt.Errorf("issue delete token: %w", err)
	}
	return token, nil
}

func (s *Service) validate(ctx context.Context, span trace.Span, p catalog.Product) error {
	err := validation.Check(p)
	if err == nil {
		return nil
	}

	var verr *catalog.ValidationError
	if errors.As(err, &verr) {
		span.SetAttributes(attribute.StringSlice("validation.fields", verr.Fields()))
		s.logger.InfoContext(ctx, "product rejected by validation",
			"product_id", p.ID,
			"fields", verr.Fields(),
		)
	}
	span.SetStatus(codes.Error, "validation failed")
	s.metrics.ValidationFailed.Inc()
	return err
}

func (s *Service) publish(ctx context.Context, eventType string, p catalog.Product, at time.Time) {
	if err := s.publisher.Publish(ctx, catalog.ProductEvent{
		EventType: eventType,
		ProductID: p.ID,
		Name:      p.Name,
		Timestamp: at,
	}); err != nil {
		s.logger.ErrorContext(ctx, "publish "+eventType+" event failed",
			"product_id", p.ID,
			"error", err,
		)
	}
}

// Timestamps are kept at microsecond precision so they survive a database round trip.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
