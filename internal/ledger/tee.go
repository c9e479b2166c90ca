package ledger

import (
	"context"
	"errors"
)

// Tee 同时写入主存储和若干镜像 (例如 CSV + Postgres)，读取只走主存储
type Tee struct {
	primary Store
	mirrors []Store
}

func NewTee(primary Store, mirrors ...Store) *Tee {
	return &Tee{primary: primary, mirrors: mirrors}
}

// Append 所有存储都会尝试写入，任何一个失败都返回错误
func (t *Tee) Append(ctx context.Context, r Record) error {
	errs := []error{t.primary.Append(ctx, r)}
	for _, m := range t.mirrors {
		errs = append(errs, m.Append(ctx, r))
	}
	return errors.Join(errs...)
}

func (t *Tee) ReadAll(ctx context.Context) ([]Record, error) {
	return t.primary.ReadAll(ctx)
}
