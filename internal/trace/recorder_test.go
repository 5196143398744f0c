package trace

import (
	"context"
	"testing"
	"time"

	"github.com/coastline/webextract/pkg/models"
)

func TestRecorderRecordsOnFailurePolicy(t *testing.T) {
	r := New(Policy{OnlyRecordFailures: true, Enabled: true}, 10, time.Hour)
	ctx := context.Background()

	id := r.Start(ctx, "https://example.com/a")
	r.Record(id, "site-handlers", "tier_attempt", map[string]interface{}{"success": false, "durationMs": int64(5)})
	r.Finish(id, &models.ContentResult{Error: "all strategies exhausted"})

	tr, ok := r.Get(id)
	if !ok {
		t.Fatal("Get() found = false, want true for a recorded failure")
	}
	if tr.Success {
		t.Error("Success = true, want false")
	}
	if len(tr.Tiers) != 1 {
		t.Errorf("len(Tiers) = %d, want 1", len(tr.Tiers))
	}
}

func TestRecorderSkipsSuccessUnderOnlyFailuresPolicy(t *testing.T) {
	r := New(Policy{OnlyRecordFailures: true, Enabled: true}, 10, time.Hour)
	ctx := context.Background()

	id := r.Start(ctx, "https://example.com/a")
	r.Finish(id, &models.ContentResult{})

	if _, ok := r.Get(id); ok {
		t.Error("Get() found = true for a successful trace under onlyRecordFailures, want false")
	}
}

func TestRecorderNeverRecordOverridesAlways(t *testing.T) {
	r := New(Policy{
		Enabled:      true,
		AlwaysRecord: map[string]bool{"example.com": true},
		NeverRecord:  map[string]bool{"example.com": true},
	}, 10, time.Hour)
	ctx := context.Background()

	id := r.Start(ctx, "https://example.com/a")
	r.Finish(id, &models.ContentResult{})

	if _, ok := r.Get(id); ok {
		t.Error("Get() found = true despite neverRecord, want false")
	}
}

func TestRecorderEnforcesMaxCount(t *testing.T) {
	r := New(Policy{Enabled: true}, 2, time.Hour)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id := r.Start(ctx, "https://example.com/a")
		r.Finish(id, &models.ContentResult{})
		ids = append(ids, id)
	}

	if _, ok := r.Get(ids[0]); ok {
		t.Error("oldest trace survived beyond maxCount, want evicted")
	}
	if _, ok := r.Get(ids[2]); !ok {
		t.Error("newest trace missing, want retained")
	}
}
