package dto

// ── 分页请求 ──

// ListRequest 通用 limit/offset 分页参数
type ListRequest struct {
	Limit  int `form:"limit"  binding:"omitempty,min=1"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// GetLimit 获取每页数量：未指定取 def，超过 max 截断为 max
func (p *ListRequest) GetLimit(def, max int) int {
	if p.Limit <= 0 {
		return def
	}
	if p.Limit > max {
		return max
	}
	return p.Limit
}

// GetOffset 获取偏移量（含默认值）
func (p *ListRequest) GetOffset() int {
	if p.Offset < 0 {
		return 0
	}
	return p.Offset
}

// ListResponse limit/offset 分页响应数据
type ListResponse struct {
	List   interface{} `json:"list"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}
