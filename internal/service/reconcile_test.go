package service

import (
	"errors"
	"testing"

	pkgerrors "showplan/backend/pkg/errors"
)

type existingRow struct {
	id  string
	key string
}

func reconcileRows(desired []string, existing []existingRow) (*ReconcilePlan[string, existingRow], error) {
	return Reconcile(desired, existing,
		func(d string) string { return d },
		func(e existingRow) string { return e.key },
	)
}

func TestReconcile_CreateMatchDelete(t *testing.T) {
	plan, err := reconcileRows(
		[]string{"mc_a", "mc_c"},
		[]existingRow{{"r1", "mc_a"}, {"r2", "mc_b"}},
	)
	if err != nil {
		t.Fatalf("对账失败: %v", err)
	}

	if len(plan.Creates) != 1 || plan.Creates[0] != "mc_c" {
		t.Errorf("期望新建 [mc_c]，实际=%v", plan.Creates)
	}
	if len(plan.Matches) != 1 || plan.Matches[0].Existing.id != "r1" {
		t.Errorf("期望配对 r1，实际=%v", plan.Matches)
	}
	if len(plan.Deletes) != 1 || plan.Deletes[0].id != "r2" {
		t.Errorf("期望删除 r2，实际=%v", plan.Deletes)
	}
}

func TestReconcile_EmptyDesiredDeletesAll(t *testing.T) {
	plan, err := reconcileRows(nil, []existingRow{{"r1", "a"}, {"r2", "b"}})
	if err != nil {
		t.Fatalf("对账失败: %v", err)
	}
	if len(plan.Creates) != 0 || len(plan.Matches) != 0 || len(plan.Deletes) != 2 {
		t.Errorf("期望全部删除，实际 creates=%d matches=%d deletes=%d",
			len(plan.Creates), len(plan.Matches), len(plan.Deletes))
	}
}

func TestReconcile_EmptyExistingCreatesAll(t *testing.T) {
	plan, err := reconcileRows([]string{"a", "b"}, nil)
	if err != nil {
		t.Fatalf("对账失败: %v", err)
	}
	if len(plan.Creates) != 2 || len(plan.Deletes) != 0 {
		t.Errorf("期望全部新建，实际 creates=%v deletes=%v", plan.Creates, plan.Deletes)
	}
}

func TestReconcile_IdenticalSetsOnlyMatch(t *testing.T) {
	plan, err := reconcileRows([]string{"a", "b"}, []existingRow{{"r1", "a"}, {"r2", "b"}})
	if err != nil {
		t.Fatalf("对账失败: %v", err)
	}
	if len(plan.Matches) != 2 || len(plan.Creates) != 0 || len(plan.Deletes) != 0 {
		t.Errorf("相同集合应只有配对，实际=%+v", plan)
	}
}

func TestReconcile_DuplicateDesiredKey(t *testing.T) {
	_, err := reconcileRows([]string{"a", "b", "a"}, nil)
	if !errors.Is(err, ErrDuplicateNaturalKey) {
		t.Fatalf("期望 ErrDuplicateNaturalKey，实际=%v", err)
	}
	if !errors.Is(err, pkgerrors.ErrBadRequest) {
		t.Error("重复自然键应归类为 BadRequest")
	}
	var dup *DuplicateKeyError
	if !errors.As(err, &dup) || dup.Index != 2 || dup.Key != "a" {
		t.Errorf("期望指出第 2 项 a 重复，实际=%+v", dup)
	}
}

func TestReconcile_DuplicateExistingKeyClassifiedOnce(t *testing.T) {
	plan, err := reconcileRows([]string{"a"}, []existingRow{{"r1", "a"}, {"r2", "a"}})
	if err != nil {
		t.Fatalf("对账失败: %v", err)
	}
	if len(plan.Matches) != 1 || plan.Matches[0].Existing.id != "r1" {
		t.Errorf("应保留第一行参与配对，实际=%v", plan.Matches)
	}
	if len(plan.Deletes) != 1 || plan.Deletes[0].id != "r2" {
		t.Errorf("重复的已有行应被删除，实际=%v", plan.Deletes)
	}
}
