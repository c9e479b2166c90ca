package request

import "encoding/json"

type RunFromRosterRequest struct {
	RpcUrl string `json:"rpc_url" binding:"omitempty,url"`
}

// RunFromPayloadRequest employees 可以是 JSON 数组，也可以是包含数组的 JSON 字符串
type RunFromPayloadRequest struct {
	RpcUrl    string          `json:"rpc_url" binding:"omitempty,url"`
	Employees json.RawMessage `json:"employees" binding:"required"`
}
