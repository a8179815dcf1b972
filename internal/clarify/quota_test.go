package clarify

import (
	"context"
	"testing"
	"time"
)

func TestQuotaAdmitSequence(t *testing.T) {
	repo := newFakeRepo()
	ledger := NewQuotaLedger(repo, 5, time.Second)
	day := "2026-08-29"

	for i := 0; i < 5; i++ {
		adm := ledger.Admit(context.Background(), "s1", day)
		if !adm.Admitted {
			t.Fatalf("Request %d should be admitted", i+1)
		}
		if adm.Remaining != 5-i-1 {
			t.Errorf("Request %d: expected remaining %d, got %d", i+1, 5-i-1, adm.Remaining)
		}
	}

	adm := ledger.Admit(context.Background(), "s1", day)
	if adm.Admitted {
		t.Error("Sixth request on the same day should be denied")
	}
	if adm.Remaining != 0 {
		t.Errorf("Denied request should report remaining 0, got %d", adm.Remaining)
	}
}

func TestQuotaSessionsIndependent(t *testing.T) {
	repo := newFakeRepo()
	ledger := NewQuotaLedger(repo, 1, time.Second)
	day := "2026-08-29"

	if adm := ledger.Admit(context.Background(), "a", day); !adm.Admitted {
		t.Fatal("Session a should be admitted")
	}
	if adm := ledger.Admit(context.Background(), "a", day); adm.Admitted {
		t.Error("Session a should be exhausted")
	}
	if adm := ledger.Admit(context.Background(), "b", day); !adm.Admitted {
		t.Error("Session b must not be affected by session a's usage")
	}
}

func TestQuotaDaysIndependent(t *testing.T) {
	repo := newFakeRepo()
	ledger := NewQuotaLedger(repo, 1, time.Second)

	if adm := ledger.Admit(context.Background(), "s1", "2026-08-29"); !adm.Admitted {
		t.Fatal("First day should be admitted")
	}
	if adm := ledger.Admit(context.Background(), "s1", "2026-08-29"); adm.Admitted {
		t.Error("First day should be exhausted")
	}
	if adm := ledger.Admit(context.Background(), "s1", "2026-08-30"); !adm.Admitted {
		t.Error("A new day resets the allowance")
	}
}

func TestQuotaReadFailureFailsOpen(t *testing.T) {
	repo := newFakeRepo()
	repo.failUsageRead = true
	ledger := NewQuotaLedger(repo, 5, time.Second)

	adm := ledger.Admit(context.Background(), "s1", "2026-08-29")
	if !adm.Admitted {
		t.Error("A quota read failure must admit the request")
	}
}

func TestQuotaWriteFailureStillAdmits(t *testing.T) {
	repo := newFakeRepo()
	repo.failUsageWrite = true
	ledger := NewQuotaLedger(repo, 5, time.Second)

	adm := ledger.Admit(context.Background(), "s1", "2026-08-29")
	if !adm.Admitted {
		t.Error("A failed increment must not revoke admission")
	}
}

func TestQuotaDayUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	// 02:30 local on Aug 30 is still Aug 29 in UTC.
	now := time.Date(2026, 8, 30, 2, 30, 0, 0, loc)

	if day := QuotaDay(now); day != "2026-08-29" {
		t.Errorf("Expected UTC day 2026-08-29, got %s", day)
	}
}
