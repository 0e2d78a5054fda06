package uid

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUID_New(t *testing.T) {
	a, b := UUID{}.New(), UUID{}.New()
	if a == b {
		t.Fatal("两次生成的 ID 不应相同")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("期望合法 UUID，实际=%s", a)
	}
}

func TestSequence_New(t *testing.T) {
	s := &Sequence{Prefix: "show"}
	if got := s.New(); got != "show-1" {
		t.Errorf("期望 show-1，实际=%s", got)
	}
	if got := s.New(); got != "show-2" {
		t.Errorf("期望 show-2，实际=%s", got)
	}
}
