package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"product-catalog/internal/catalog"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// productRow is the GORM mapping of catalog.Product. Timestamps are managed by the service.
type productRow struct {
	ID          int64      `gorm:"primaryKey;autoIncrement"`
	Name        string     `gorm:"size:255;not null"`
	Price       int        `gorm:"not null"`
	Description string     `gorm:"size:255;not null"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime:false"`
	UpdatedAt   *time.Time `gorm:"autoUpdateTime:false"`
}

func (productRow) TableName() string {
	return "products"
}

func toRow(p catalog.Product) productRow {
	return productRow{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (r productRow) toProduct() catalog.Product {
	p := catalog.Product{
		ID:          r.ID,
		Name:        r.Name,
		Price:       r.Price,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.UpdatedAt != nil {
		t := r.UpdatedAt.UTC()
		p.UpdatedAt = &t
	}
	return p
}

// OpenSQLite opens the database at dsn and migrates the products table.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	if err := db.AutoMigrate(&productRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return db, nil
}

type SQLiteRepository struct {
	db *gorm.DB
}

func NewSQLite(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) FindAll(ctx context.Context) ([]catalog.Product, error) {
	var rows []productRow
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}

	list := make([]catalog.Product, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.toProduct())
	}
	return list, nil
}

func (r *SQLiteRepository) FindPage(ctx context.Context, limit, offset int) ([]catalog.Product, error) {
	var rows []productRow
	if err := r.db.WithContext(ctx).Order("id ASC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query products page: %w", err)
	}

	list := make([]catalog.Product, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.toProduct())
	}
	return list, nil
}

func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&productRow{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, id int64) (catalog.Product, error) {
	var row productRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return catalog.Product{}, catalog.ErrNotFound
		}
		return catalog.Product{}, fmt.Errorf("select product %d: %w", id, err)
	}
	return row.toProduct(), nil
}

func (r *SQLiteRepository) Persist(ctx context.Context, p *catalog.Product) error {
	row := toRow(*p)

	if !p.Persisted() {
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("insert product: %w", err)
		}
		p.ID = row.ID
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&productRow{ID: p.ID}).
		Select("name", "price", "description", "updated_at").
		Updates(&row)
	if res.Error != nil {
		return fmt.Errorf("update product %d: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, id int64) error {
	if err := r.db.WithContext(ctx).Delete(&productRow{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) Health() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
