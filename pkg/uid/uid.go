// Package uid 生成实体主键
package uid

import (
	"strconv"

	"github.com/google/uuid"
)

// Generator 主键生成器
type Generator interface {
	New() string
}

// UUID 基于随机 UUIDv4
type UUID struct{}

// New 返回新的 UUID 字符串
func (UUID) New() string {
	return uuid.NewString()
}

// Sequence 测试用的确定性生成器，依次返回 prefix-1、prefix-2 ...
type Sequence struct {
	Prefix string
	n      int
}

func (s *Sequence) New() string {
	s.n++
	return s.Prefix + "-" + strconv.Itoa(s.n)
}
