package service

import (
	"errors"
	"fmt"

	pkgerrors "showplan/backend/pkg/errors"
)

// ErrDuplicateNaturalKey 期望集合中同一自然键出现多次
var ErrDuplicateNaturalKey = pkgerrors.BadRequestError("存在重复的自然键")

// DuplicateKeyError 期望集合第 Index 项的自然键与前面的项重复
type DuplicateKeyError struct {
	Index int
	Key   string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%v: %s", ErrDuplicateNaturalKey, e.Key)
}

// Unwrap 使 errors.Is(err, ErrDuplicateNaturalKey) 成立
func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateNaturalKey }

// withPlanKey 把重复键错误中的内部 ID 换成计划文档中的外部 uid，便于调用方定位
func withPlanKey(err error, label string, uidAt func(i int) string) error {
	var dup *DuplicateKeyError
	if !errors.As(err, &dup) {
		return err
	}
	if uid := uidAt(dup.Index); uid != "" {
		return &DuplicateKeyError{Index: dup.Index, Key: label + " " + uid}
	}
	return err
}

// Match 期望项与已有行按自然键配对
type Match[D, E any] struct {
	Desired  D
	Existing E
}

// ReconcilePlan 集合对账结果，尚未落库
type ReconcilePlan[D, E any] struct {
	Creates []D
	Matches []Match[D, E]
	Deletes []E
}

// Reconcile 按自然键比较期望集合与已有（未删除）行：
//
//   - 期望中存在、已有中不存在 → 新建
//   - 两边都存在 → 配对，由调用方决定是否更新
//   - 已有中存在、期望中不存在 → 软删除
//
// 期望集合中的重复键返回 ErrDuplicateNaturalKey。已有行中同一键出现多次时
// 保留第一行参与配对，其余行一并删除，保证每行只被归类一次。
// 结果顺序与输入顺序一致。
func Reconcile[K comparable, D, E any](
	desired []D,
	existing []E,
	desiredKey func(D) K,
	existingKey func(E) K,
) (*ReconcilePlan[D, E], error) {
	plan := &ReconcilePlan[D, E]{}

	byKey := make(map[K]int, len(existing))
	stale := make([]bool, len(existing))
	for i, e := range existing {
		k := existingKey(e)
		if _, dup := byKey[k]; dup {
			stale[i] = true
			continue
		}
		byKey[k] = i
	}

	processed := make(map[K]struct{}, len(desired))
	for i, d := range desired {
		k := desiredKey(d)
		if _, seen := processed[k]; seen {
			return nil, &DuplicateKeyError{Index: i, Key: fmt.Sprint(k)}
		}
		processed[k] = struct{}{}

		if i, ok := byKey[k]; ok {
			plan.Matches = append(plan.Matches, Match[D, E]{Desired: d, Existing: existing[i]})
		} else {
			plan.Creates = append(plan.Creates, d)
		}
	}

	for i, e := range existing {
		if stale[i] {
			plan.Deletes = append(plan.Deletes, e)
			continue
		}
		if _, keep := processed[existingKey(e)]; !keep {
			plan.Deletes = append(plan.Deletes, e)
		}
	}

	return plan, nil
}
