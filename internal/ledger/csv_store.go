package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// CSVStore 基于本地 CSV 文件的流水
type CSVStore struct {
	path string
	mu   sync.Mutex
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) Path() string {
	return s.path
}

// Append 追加一行，文件不存在或为空时先写表头
func (s *CSVStore) Append(_ context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.append(r); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, s.path, err)
	}
	return nil
}

func (s *CSVStore) append(r Record) (err error) {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	// 上次写入中途崩溃留下的半行没有换行符，先补上，新记录另起一行
	if info.Size() > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err != nil {
			return err
		}
		if last[0] != '\n' {
			if _, err := f.Write([]byte{'\n'}); err != nil {
				return err
			}
		}
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return err
		}
	}
	if err := w.Write(r.row()); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	// 下一笔交易开始前必须落盘
	return f.Sync()
}

// ReadAll 读取全部记录，文件不存在时返回空
func (s *CSVStore) ReadAll(_ context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	head, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	if !slices.Equal(head, Header) {
		return nil, fmt.Errorf("%w: unexpected header %v", ErrRead, head)
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRead, err)
		}
		if len(row) < len(Header) {
			// 写入中途崩溃留下的半行
			continue
		}
		if len(row) > len(Header) {
			return nil, fmt.Errorf("%w: line %d: expected %d fields, got %d", ErrRead, line, len(Header), len(row))
		}
		if slices.Equal(row, Header) {
			return nil, fmt.Errorf("%w: duplicate header at line %d", ErrRead, line)
		}
		ts, err := time.ParseInLocation(TimestampLayout, row[4], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrRead, line, err)
		}
		records = append(records, Record{
			TxHash:    row[0],
			Status:    row[1],
			Recipient: row[2],
			Amount:    row[3],
			Timestamp: ts,
		})
	}
	return records, nil
}
