package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"product-catalog/internal/catalog"
	"product-catalog/internal/catalog/repository"
)

type mockRepo struct {
	findAllFn  func(ctx context.Context) ([]catalog.Product, error)
	findPageFn func(ctx context.Context, limit, offset int) ([]catalog.Product, error)
	countFn    func(ctx context.Context) (int64, error)
	findByIDFn func(ctx context.Context, id int64) (catalog.Product, error)
	persistFn  func(ctx context.Context, p *catalog.Product) error
	removeFn   func(ctx context.Context, id int64) error
}

func (m *mockRepo) FindAll(ctx context.Context) ([]catalog.Product, error) {
	return m.findAllFn(ctx)
}
func (m *mockRepo) FindPage(ctx context.Context, limit, offset int) ([]catalog.Product, error) {
	return m.findPageFn(ctx, limit, offset)
}
func (m *mockRepo) Count(ctx context.Context) (int64, error) {
	return m.countFn(ctx)
}
func (m *mockRepo) FindByID(ctx context.Context, id int64) (catalog.Product, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockRepo) Persist(ctx context.Context, p *catalog.Product) error {
	return m.persistFn(ctx, p)
}
func (m *mockRepo) Remove(ctx context.Context, id int64) error {
	return m.removeFn(ctx, id)
}

type mockPublisher struct {
	events []catalog.ProductEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, event catalog.ProductEvent) error {
	m.events = append(m.events, event)
	return m.err
}

// stubTokens accepts "ok-<id>" for product id.
type stubTokens struct{}

func (stubTokens) Issue(id int64) (string, error) {
	return tokenFor(id), nil
}

func (stubTokens) Verify(id int64, token string) bool {
	return token == tokenFor(id)
}

func tokenFor(id int64) string {
	return "ok-" + strconv.FormatInt(id, 10)
}

// fakeClock advances by one second on every reading.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestService(repo Repository, pub Publisher) *Service {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	svc := New(repo, pub, stubTokens{}, logger, NewMetrics())
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc.now = clock.Now
	return svc
}

func input(name string, price int, description string) catalog.Input {
	return catalog.Input{Name: &name, Price: &price, Description: &description}
}

func validationRules(t *testing.T, err error, field string) []string {
	t.Helper()
	var verr *catalog.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want *catalog.ValidationError, got %v", err)
	}
	var out []string
	for _, v := range verr.Violations {
		if v.Field == field {
			out = append(out, v.Rule)
		}
	}
	return out
}

func TestCreateProduct(t *testing.T) {
	repo := repository.NewMemory()
	pub := &mockPublisher{}
	svc := newTestService(repo, pub)
	ctx := context.Background()

	product, err := svc.CreateProduct(ctx, input("Widget", 50, "A sturdy widget"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if product.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if product.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be set")
	}
	if product.UpdatedAt != nil {
		t.Fatalf("expected nil updated_at, got %v", product.UpdatedAt)
	}

	stored, err := repo.FindByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("find stored product: %v", err)
	}
	if stored.Name != "Widget" || stored.Price != 50 || stored.Description != "A sturdy widget" {
		t.Fatalf("stored product mismatch: %+v", stored)
	}
	if !stored.CreatedAt.Equal(product.CreatedAt) {
		t.Fatalf("want created_at %v, got %v", product.CreatedAt, stored.CreatedAt)
	}

	if len(pub.events) != 1 || pub.events[0].EventType != catalog.EventCreated {
		t.Fatalf("want event %q, got %v", catalog.EventCreated, pub.events)
	}
	if pub.events[0].ProductID != product.ID {
		t.Fatalf("want event product id %d, got %d", product.ID, pub.events[0].ProductID)
	}
}

func TestCreateProduct_ValidationFailure(t *testing.T) {
	tests := []struct {
		name       string
		in         catalog.Input
		wantFields map[string][]string
	}{
		{
			name:       "price below range",
			in:         input("Widget", 3, "A sturdy widget"),
			wantFields: map[string][]string{"price": {"range"}},
		},
		{
			name:       "zero price breaks positivity and range",
			in:         input("Widget", 0, "A sturdy widget"),
			wantFields: map[string][]string{"price": {"positive", "range"}},
		},
		{
			name: "missing fields",
			in:   catalog.Input{},
			wantFields: map[string][]string{
				"name":        {"required", "length"},
				"price":       {"positive", "range"},
				"description": {"required", "length"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemory()
			pub := &mockPublisher{}
			svc := newTestService(repo, pub)

			_, err := svc.CreateProduct(context.Background(), tt.in)
			for field, want := range tt.wantFields {
				got := validationRules(t, err, field)
				if len(got) != len(want) {
					t.Fatalf("field %s: want rules %v, got %v", field, want, got)
				}
				for i := range want {
					if got[i] != want[i] {
						t.Fatalf("field %s: want rules %v, got %v", field, want, got)
					}
				}
			}

			list, _ := repo.FindAll(context.Background())
			if len(list) != 0 {
				t.Fatalf("store must be unchanged, got %d records", len(list))
			}
			if len(pub.events) != 0 {
				t.Fatalf("no event expected, got %v", pub.events)
			}
		})
	}
}

func TestCreateProduct_RepoErrorIsWrapped(t *testing.T) {
	errDB := errors.New("db down")
	repo := &mockRepo{
		persistFn: func(_ context.Context, _ *catalog.Product) error { return errDB },
	}
	svc := newTestService(repo, &mockPublisher{})

	_, err := svc.CreateProduct(context.Background(), input("Widget", 50, "A sturdy widget"))
	if !errors.Is(err, errDB) {
		t.Fatalf("want error wrapping %v, got %v", errDB, err)
	}
}

func TestCreateProduct_PublishFail_StillReturnsProduct(t *testing.T) {
	pub := &mockPublisher{err: errors.New("broker down")}
	svc := newTestService(repository.NewMemory(), pub)

	product, err := svc.CreateProduct(context.Background(), input("Widget", 50, "A sturdy widget"))
	if err != nil {
		t.Fatalf("expected no error despite publish failure, got: %v", err)
	}
	if product.Name != "Widget" {
		t.Fatalf("want name Widget, got %q", product.Name)
	}
}

func TestGetProduct(t *testing.T) {
	repo := repository.NewMemory()
	svc := newTestService(repo, &mockPublisher{})
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, input("Widget", 50, "A sturdy widget"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	t.Run("found", func(t *testing.T) {
		got, err := svc.GetProduct(ctx, created.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Name != created.Name {
			t.Fatalf("want %q, got %q", created.Name, got.Name)
		}
	})

	t.Run("not found", func(t *testing.T) {
		if _, err := svc.GetProduct(ctx, 999); !errors.Is(err, catalog.ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
	})

	t.Run("repo error is wrapped", func(t *testing.T) {
		errDB := errors.New("db down")
		failing := newTestService(&mockRepo{
			findByIDFn: func(_ context.Context, _ int64) (catalog.Product, error) {
				return catalog.Product{}, errDB
			},
		}, &mockPublisher{})
		if _, err := failing.GetProduct(ctx, 1); !errors.Is(err, errDB) {
			t.Fatalf("want error wrapping %v, got %v", errDB, err)
		}
	})
}

func TestUpdateProduct(t *testing.T) {
	repo := repository.NewMemory()
	pub := &mockPublisher{}
	svc := newTestService(repo, pub)
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, input("Widget", 50, "A sturdy widget"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newName := "Widget Pro"
	updated, err := svc.UpdateProduct(ctx, created.ID, catalog.Input{Name: &newName})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.ID != created.ID {
		t.Fatalf("id changed: %d -> %d", created.ID, updated.ID)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("created_at changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}
	if updated.UpdatedAt == nil || !updated.UpdatedAt.After(created.CreatedAt) {
		t.Fatalf("want updated_at after %v, got %v", created.CreatedAt, updated.UpdatedAt)
	}
	if updated.Name != newName || updated.Price != 50 || updated.Description != "A sturdy widget" {
		t.Fatalf("merge mismatch: %+v", updated)
	}

	stored, _ := repo.FindByID(ctx, created.ID)
	if stored.Name != newName || stored.UpdatedAt == nil {
		t.Fatalf("store not updated: %+v", stored)
	}

	if len(pub.events) != 2 || pub.events[1].EventType != catalog.EventUpdated {
		t.Fatalf("want %q event, got %v", catalog.EventUpdated, pub.events)
	}

	t.Run("second update stamps a later updated_at", func(t *testing.T) {
		price := 60
		again, err := svc.UpdateProduct(ctx, created.ID, catalog.Input{Price: &price})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !again.UpdatedAt.After(*updated.UpdatedAt) {
			t.Fatalf("want updated_at after %v, got %v", updated.UpdatedAt, again.UpdatedAt)
		}
	})
}

func TestUpdateProduct_ValidationFailureLeavesStore(t *testing.T) {
	repo := repository.NewMemory()
	svc := newTestService(repo, &mockPublisher{})
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, input("Widget", 50, "A sturdy widget"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	price := 500
	_, err = svc.UpdateProduct(ctx, created.ID, catalog.Input{Price: &price})
	if got := validationRules(t, err, "price"); len(got) != 1 || got[0] != "range" {
		t.Fatalf("want range violation, got %v", got)
	}

	stored, _ := repo.FindByID(ctx, created.ID)
	if stored.Price != 50 || stored.UpdatedAt != nil {
		t.Fatalf("store must be unchanged, got %+v", stored)
	}
}

func TestUpdateProduct_NotFound(t *testing.T) {
	svc := newTestService(repository.NewMemory(), &mockPublisher{})

	_, err := svc.UpdateProduct(context.Background(), 42, input("Widget", 50, "A sturdy widget"))
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeleteProduct(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		token     func(id int64) string
		missing   bool
		wantErr   error
		wantGone  bool
		wantEvent bool
	}{
		{
			name:      "matching token removes record",
			token:     tokenFor,
			wantGone:  true,
			wantEvent: true,
		},
		{
			name:    "mismatched token keeps record",
			token:   func(int64) string { return "forged" },
			wantErr: catalog.ErrDeleteUnauthorized,
		},
		{
			name:    "token for another product keeps record",
			token:   func(id int64) string { return tokenFor(id + 1) },
			wantErr: catalog.ErrDeleteUnauthorized,
		},
		{
			name:    "unknown id",
			token:   tokenFor,
			missing: true,
			wantErr: catalog.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemory()
			pub := &mockPublisher{}
			svc := newTestService(repo, pub)

			created, err := svc.CreateProduct(ctx, input("Widget", 50, "A sturdy widget"))
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			id := created.ID
			if tt.missing {
				id = 999
			}

			err = svc.DeleteProduct(ctx, id, tt.token(id))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want error %v, got %v", tt.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			list, _ := svc.ListProducts(ctx)
			present := false
			for _, p := range list {
				if p.ID == created.ID {
					present = true
				}
			}
			if present == tt.wantGone {
				t.Fatalf("want gone=%v, record present=%v", tt.wantGone, present)
			}
			if tt.wantGone {
				if _, err := svc.GetProduct(ctx, created.ID); !errors.Is(err, catalog.ErrNotFound) {
					t.Fatalf("want ErrNotFound after delete, got %v", err)
				}
			}

			gotEvent := len(pub.events) == 2 && pub.events[1].EventType == catalog.EventDeleted
			if gotEvent != tt.wantEvent {
				t.Fatalf("want delete event=%v, got events %v", tt.wantEvent, pub.events)
			}
		})
	}
}

func TestDeleteProduct_RemoveErrorIsWrapped(t *testing.T) {
	errDB := errors.New("db down")
	repo := &mockRepo{
		findByIDFn: func(_ context.Context, id int64) (catalog.Product, error) {
			return catalog.Product{ID: id}, nil
		},
		removeFn: func(_ context.Context, _ int64) error { return errDB },
	}
	svc := newTestService(repo, &mockPublisher{})

	if err := svc.DeleteProduct(context.Background(), 3, tokenFor(3)); !errors.Is(err, errDB) {
		t.Fatalf("want error wrapping %v, got %v", errDB, err)
	}
}

func TestListProducts_InsertionOrder(t *testing.T) {
	svc := newTestService(repository.NewMemory(), &mockPublisher{})
	ctx := context.Background()

	names := []string{"Zulu item", "Alpha item", "Mike item"}
	for _, name := range names {
		if _, err := svc.CreateProduct(ctx, input(name, 50, "A sturdy widget")); err != nil {
			t.Fatalf("create %q: %v", name, err)
		}
	}

	list, err := svc.ListProducts(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != len(names) {
		t.Fatalf("want %d items, got %d", len(names), len(list))
	}
	for i, name := range names {
		if list[i].Name != name {
			t.Fatalf("position %d: want %q, got %q", i, name, list[i].Name)
		}
	}
}

func TestListProducts_RepoErrorIsWrapped(t *testing.T) {
	errDB := errors.New("db down")
	svc := newTestService(&mockRepo{
		findAllFn: func(_ context.Context) ([]catalog.Product, error) { return nil, errDB },
	}, &mockPublisher{})

	if _, err := svc.ListProducts(context.Background()); !errors.Is(err, errDB) {
		t.Fatalf("want error wrapping %v, got %v", errDB, err)
	}
}

func TestDeleteToken(t *testing.T) {
	svc := newTestService(repository.NewMemory(), &mockPublisher{})

	token, err := svc.DeleteToken(5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != tokenFor(5) {
		t.Fatalf("want %q, got %q", tokenFor(5), token)
	}
}

func TestPublishedEvents_UseServiceClock(t *testing.T) {
	pub := &mockPublisher{}
	svc := newTestService(repository.NewMemory(), pub)
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, input("Widget", 50, "A sturdy widget"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	price := 70
	updated, err := svc.UpdateProduct(ctx, created.ID, catalog.Input{Price: &price})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := svc.DeleteProduct(ctx, created.ID, tokenFor(created.ID)); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if len(pub.events) != 3 {
		t.Fatalf("want 3 events, got %v", pub.events)
	}
	if !pub.events[0].Timestamp.Equal(created.CreatedAt) {
		t.Fatalf("created event: want %v, got %v", created.CreatedAt, pub.events[0].Timestamp)
	}
	if !pub.events[1].Timestamp.Equal(*updated.UpdatedAt) {
		t.Fatalf("updated event: want %v, got %v", *updated.UpdatedAt, pub.events[1].Timestamp)
	}
	if !pub.events[2].Timestamp.After(*updated.UpdatedAt) {
		t.Fatalf("deleted event: want after %v, got %v", *updated.UpdatedAt, pub.events[2].Timestamp)
	}
	if pub.events[2].Timestamp.Year() != 2026 {
		t.Fatalf("deleted event must come from the service clock, got %v", pub.events[2].Timestamp)
	}
}

func TestListProductsPage(t *testing.T) {
	svc := newTestService(repository.NewMemory(), &mockPublisher{})
	ctx := context.Background()

	for _, name := range []string{"Alpha item", "Bravo item", "Charlie item", "Delta item", "Echo item"} {
		if _, err := svc.CreateProduct(ctx, input(name, 50, "A sturdy widget")); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	tests := []struct {
		name          string
		limit, offset int
		wantNames     []string
	}{
		{name: "first page", limit: 2, offset: 0, wantNames: []string{"Alpha item", "Bravo item"}},
		{name: "last partial page", limit: 2, offset: 4, wantNames: []string{"Echo item"}},
		{name: "past the end", limit: 2, offset: 10, wantNames: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := svc.ListProductsPage(ctx, tt.limit, tt.offset)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if total != 5 {
				t.Fatalf("want total 5, got %d", total)
			}
			if len(items) != len(tt.wantNames) {
				t.Fatalf("want %d items, got %d", len(tt.wantNames), len(items))
			}
			for i, name := range tt.wantNames {
				if items[i].Name != name {
					t.Fatalf("item %d: want %q, got %q", i, name, items[i].Name)
				}
			}
		})
	}
}

func TestListProductsPage_RepoErrorsAreWrapped(t *testing.T) {
	errDB := errors.New("db down")

	tests := []struct {
		name string
		repo *mockRepo
	}{
		{
			name: "page query fails",
			repo: &mockRepo{
				findPageFn: func(context.Context, int, int) ([]catalog.Product, error) { return nil, errDB },
			},
		},
		{
			name: "count fails",
			repo: &mockRepo{
				findPageFn: func(context.Context, int, int) ([]catalog.Product, error) { return nil, nil },
				countFn:    func(context.Context) (int64, error) { return 0, errDB },
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(tt.repo, &mockPublisher{})
			if _, _, err := svc.ListProductsPage(context.Background(), 10, 0); !errors.Is(err, errDB) {
				t.Fatalf("want error wrapping %v, got %v", errDB, err)
			}
		})
	}
}
