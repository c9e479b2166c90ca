package payroll

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"lukechampine.com/blake3"
)

type LoadOptions struct {
	// AllowPartial 为 true 时无效记录不会终止整个批次，而是以 rejected 结果返回
	AllowPartial bool
}

// Record 来自花名册等结构化来源的一条记录
type Record struct {
	AccountID string
	Salary    string
}

// Batch 已校验的批次
type Batch struct {
	Requests []TransferRequest
	Rejected []*RecipientError
}

// Size 原始输入条数
func (b Batch) Size() int {
	return len(b.Requests) + len(b.Rejected)
}

// Digest 批次内容的 blake3 摘要，相同的批次得到相同的值
func (b Batch) Digest() string {
	h := blake3.New(32, nil)
	for _, r := range b.Requests {
		fmt.Fprintf(h, "%d|%s|%s\n", r.Index, r.Recipient.Hex(), r.Amount.String())
	}
	for _, r := range b.Rejected {
		fmt.Fprintf(h, "%d|%s|rejected\n", r.Index, r.Recipient)
	}
	return hex.EncodeToString(h.Sum(nil))
}

type payloadEntry struct {
	AccountID json.RawMessage `json:"accountId"`
	Salary    json.RawMessage `json:"salary"`
}

// ParsePayload 解析 JSON 数组 [{"accountId": "0x..", "salary": "1.5"}, ...]
// salary 可以是字符串或数字；整个数组也可以被再包一层 JSON 字符串
func ParsePayload(payload []byte, opts LoadOptions) (Batch, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) > 0 && payload[0] == '"' {
		var inner string
		if err := json.Unmarshal(payload, &inner); err != nil {
			return Batch{}, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
		}
		payload = bytes.TrimSpace([]byte(inner))
	}
	if len(payload) == 0 || payload[0] != '[' {
		return Batch{}, fmt.Errorf("%w: expected a JSON array", ErrMalformedBatch)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Batch{}, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}

	records := make([]Record, 0, len(raw))
	for i, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			return Batch{}, fmt.Errorf("%w: entry %d is not an object", ErrMalformedBatch, i)
		}
		var e payloadEntry
		if err := json.Unmarshal(item, &e); err != nil {
			return Batch{}, fmt.Errorf("%w: entry %d: %v", ErrMalformedBatch, i, err)
		}
		records = append(records, Record{
			AccountID: jsonScalar(e.AccountID),
			Salary:    jsonScalar(e.Salary),
		})
	}
	return LoadRecords(records, opts)
}

// jsonScalar 字符串去引号，数字保留字面量，null/缺失返回空
func jsonScalar(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// LoadRecords 校验结构化记录，保持输入顺序
func LoadRecords(records []Record, opts LoadOptions) (Batch, error) {
	var (
		batch Batch
		errs  []error
	)
	for i, r := range records {
		req, rerr := validateRecord(i, r)
		if rerr != nil {
			batch.Rejected = append(batch.Rejected, rerr)
			errs = append(errs, rerr)
			continue
		}
		batch.Requests = append(batch.Requests, req)
	}
	if len(errs) > 0 && !opts.AllowPartial {
		return Batch{}, errors.Join(errs...)
	}
	return batch, nil
}

func validateRecord(index int, r Record) (TransferRequest, *RecipientError) {
	account := strings.TrimSpace(r.AccountID)
	reject := func(reason string) (TransferRequest, *RecipientError) {
		return TransferRequest{}, &RecipientError{Index: index, Recipient: account, Reason: reason}
	}

	if account == "" {
		return reject("missing recipient address")
	}
	if !common.IsHexAddress(account) {
		return reject("malformed recipient address")
	}

	salary := strings.TrimSpace(r.Salary)
	if salary == "" {
		return reject("missing amount")
	}
	amount, err := decimal.NewFromString(salary)
	if err != nil {
		return reject(fmt.Sprintf("non-numeric amount %q", salary))
	}
	if amount.IsNegative() {
		return reject(fmt.Sprintf("negative amount %s", salary))
	}
	if _, err := EtherToWei(amount); err != nil {
		return reject(err.Error())
	}

	return TransferRequest{
		Index:     index,
		Recipient: common.HexToAddress(account),
		Amount:    amount,
	}, nil
}
