package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"payroll-core/internal/model"
)

// GormStore 基于 Postgres transfer_records 表的流水
type GormStore struct {
	db          *gorm.DB
	autoMigrate bool

	schemaOnce sync.Once
	schemaErr  error
}

// NewGormStore autoMigrate 为 true 时在第一次写入前建表 (开发环境)，
// 生产环境请使用 cmd/migrate。
func NewGormStore(db *gorm.DB, autoMigrate bool) *GormStore {
	return &GormStore{db: db, autoMigrate: autoMigrate}
}

func (s *GormStore) ensureSchema() error {
	if !s.autoMigrate {
		return nil
	}
	s.schemaOnce.Do(func() {
		s.schemaErr = s.db.AutoMigrate(&model.TransferRecord{})
	})
	return s.schemaErr
}

func (s *GormStore) Append(ctx context.Context, r Record) error {
	if err := s.ensureSchema(); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrWrite, err)
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return fmt.Errorf("%w: amount %q: %v", ErrWrite, r.Amount, err)
	}

	row := model.TransferRecord{
		TxHash:    r.TxHash,
		Status:    r.Status,
		Recipient: r.Recipient,
		Amount:    amount,
		Timestamp: r.Timestamp.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

func (s *GormStore) ReadAll(ctx context.Context) ([]Record, error) {
	var rows []model.TransferRecord
	if err := s.db.WithContext(ctx).Order("id asc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, Record{
			TxHash:    row.TxHash,
			Status:    row.Status,
			Recipient: row.Recipient,
			Amount:    row.Amount.String(),
			Timestamp: row.Timestamp.UTC(),
		})
	}
	return records, nil
}
