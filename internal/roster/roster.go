// Package roster 读取员工花名册 CSV (name,address,accountId,salary,work_hours)。
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"payroll-core/internal/payroll"
)

var ErrUnavailable = errors.New("roster unavailable")

// Columns 花名册表头，address 为通讯地址，钱包地址在 accountId 列
var Columns = []string{"name", "address", "accountId", "salary", "work_hours"}

type Employee struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	AccountID string `json:"accountId"`
	Salary    string `json:"salary"`
	WorkHours string `json:"work_hours"`
}

// Load 按表头名取列，列的顺序不限，多余的列忽略
func Load(path string) ([]Employee, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer f.Close()
	return Read(f)
}

func Read(r io.Reader) ([]Employee, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	head, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrUnavailable, err)
	}
	idx := make(map[string]int, len(head))
	for i, h := range head {
		idx[strings.TrimSpace(h)] = i
	}
	if _, ok := idx["accountId"]; !ok {
		return nil, fmt.Errorf("%w: missing accountId column", ErrUnavailable)
	}
	if _, ok := idx["salary"]; !ok {
		return nil, fmt.Errorf("%w: missing salary column", ErrUnavailable)
	}

	col := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var employees []Employee
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		employees = append(employees, Employee{
			Name:      col(row, "name"),
			Address:   col(row, "address"),
			AccountID: col(row, "accountId"),
			Salary:    col(row, "salary"),
			WorkHours: col(row, "work_hours"),
		})
	}
	return employees, nil
}

// Records 转换为发薪引擎的输入，顺序与花名册一致
func Records(employees []Employee) []payroll.Record {
	records := make([]payroll.Record, 0, len(employees))
	for _, e := range employees {
		records = append(records, payroll.Record{AccountID: e.AccountID, Salary: e.Salary})
	}
	return records
}
