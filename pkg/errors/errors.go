package errors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ── 错误分类 ──
//
// 业务层错误通过 errors.Join 挂载以下分类哨兵，Handler 层用 errors.Is 判断分类。

var (
	// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
	ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")
	// ErrConflict 冲突类错误（版本不匹配、唯一约束冲突），调用方重新读取后可重试
	ErrConflict = ErrOptimisticLock
	// ErrNotFound 实体不存在或自然键无法解析
	ErrNotFound = errors.New("资源不存在")
	// ErrBadRequest 输入不合法
	ErrBadRequest = errors.New("请求参数不合法")
	// ErrState 状态不允许该操作（如对已发布的排期再次发布）
	ErrState = errors.New("当前状态不允许该操作")
	// ErrPersistence 基础设施故障导致事务中止，无部分生效，可安全重试
	ErrPersistence = errors.New("数据持久化失败")
)

// NotFoundError 构造带分类的 NotFound 错误
func NotFoundError(msg string) error {
	return errors.Join(ErrNotFound, errors.New(strings.TrimSpace(msg)))
}

// BadRequestError 构造带分类的 BadRequest 错误
func BadRequestError(msg string) error {
	return errors.Join(ErrBadRequest, errors.New(strings.TrimSpace(msg)))
}

// StateError 构造带分类的状态错误
func StateError(msg string) error {
	return errors.Join(ErrState, errors.New(strings.TrimSpace(msg)))
}

// ConflictError 构造带分类的冲突错误
func ConflictError(msg string) error {
	return errors.Join(ErrConflict, errors.New(strings.TrimSpace(msg)))
}

// UnresolvedKeyError 自然键解析失败，列出无法解析的键
type UnresolvedKeyError struct {
	Kind string
	Keys []string
}

// NewUnresolvedKeyError 创建自然键解析错误，键按字典序排列便于定位
func NewUnresolvedKeyError(kind string, keys []string) *UnresolvedKeyError {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	return &UnresolvedKeyError{Kind: kind, Keys: sorted}
}

func (e *UnresolvedKeyError) Error() string {
	return fmt.Sprintf("无法解析的%s标识: %s", e.Kind, strings.Join(e.Keys, ", "))
}

// Unwrap 使 errors.Is(err, ErrNotFound) 成立
func (e *UnresolvedKeyError) Unwrap() error { return ErrNotFound }

// MapDBError 将数据库层错误归类
// 已归类的错误原样返回；记录不存在 → NotFound；唯一约束冲突 → Conflict；
// CHECK/外键约束 → BadRequest（数据本身非法）；其余 → Persistence
func MapDBError(err error) error {
	if err == nil {
		return nil
	}
	if IsClassified(err) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Join(ErrNotFound, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrPersistence, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return errors.Join(ErrConflict, err)
		case "23514", "23503": // check_violation / foreign_key_violation，重试不会成功
			return errors.Join(ErrBadRequest, err)
		case "40001", "40P01": // serialization_failure / deadlock_detected
			return errors.Join(ErrPersistence, err)
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Join(ErrConflict, err)
	}
	if errors.Is(err, gorm.ErrCheckConstraintViolated) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return errors.Join(ErrBadRequest, err)
	}
	return errors.Join(ErrPersistence, err)
}

// IsClassified 判断错误是否已挂载分类哨兵
func IsClassified(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrBadRequest) ||
		errors.Is(err, ErrState) ||
		errors.Is(err, ErrPersistence)
}

// Message 去掉分类哨兵文本，返回面向调用方的业务描述
func Message(err error) string {
	if err == nil {
		return ""
	}
	sentinels := map[string]bool{
		ErrConflict.Error():    true,
		ErrNotFound.Error():    true,
		ErrBadRequest.Error():  true,
		ErrState.Error():       true,
		ErrPersistence.Error(): true,
	}
	var parts []string
	for _, line := range strings.Split(err.Error(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || sentinels[line] {
			continue
		}
		parts = append(parts, line)
	}
	if len(parts) == 0 {
		return err.Error()
	}
	return strings.Join(parts, "; ")
}
