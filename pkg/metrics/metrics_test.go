package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordReconcile(t *testing.T) {
	before := testutil.ToFloat64(get().reconcileOps.WithLabelValues("show_mc", "create"))
	RecordReconcile("show_mc", 3, 0, 0)
	after := testutil.ToFloat64(get().reconcileOps.WithLabelValues("show_mc", "create"))
	if after-before != 3 {
		t.Errorf("期望 create 计数 +3，实际 +%v", after-before)
	}
}

func TestRecordPublish(t *testing.T) {
	before := testutil.ToFloat64(get().publishTotal.WithLabelValues("success"))
	RecordPublish("success", 120*time.Millisecond)
	if got := testutil.ToFloat64(get().publishTotal.WithLabelValues("success")); got-before != 1 {
		t.Errorf("期望发布计数 +1，实际 +%v", got-before)
	}
}

func TestRecordLookupCache_SkipsZero(t *testing.T) {
	before := testutil.ToFloat64(get().lookupCache.WithLabelValues("mc", "hit"))
	RecordLookupCache("mc", 0, 2)
	if got := testutil.ToFloat64(get().lookupCache.WithLabelValues("mc", "hit")); got != before {
		t.Errorf("命中数为 0 时不应累加，实际 %v→%v", before, got)
	}
}
