package quota

import (
	"testing"

	"github.com/promptvaultdev/promptvault/internal/store"
	"github.com/promptvaultdev/promptvault/internal/testutil"
)

func newTestGate(t *testing.T, freeLimit int) (*Gate, *store.Store, *store.Account) {
	t.Helper()
	st := testutil.NewTestStore(t)
	acct := testutil.NewTestAccount(t, st)
	return NewGate(st, freeLimit), st, acct
}

func setPlan(t *testing.T, st *store.Store, accountID, plan string) {
	t.Helper()
	sub, err := st.GetSubscription(accountID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	sub.PlanType = plan
	if err := st.SaveSubscription(sub); err != nil {
		t.Fatalf("save subscription: %v", err)
	}
}

func TestCheckAndConsume_FreeAccount(t *testing.T) {
	g, _, acct := newTestGate(t, 10)

	// Consume three units up front.
	for i := 0; i < 3; i++ {
		d, err := g.CheckAndConsume(acct.ID)
		if err != nil {
			t.Fatalf("CheckAndConsume: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("denied at use %d of 10", i+1)
		}
	}

	// 3 of 10 used: the next consume leaves 6 remaining.
	d, err := g.CheckAndConsume(acct.ID)
	if err != nil {
		t.Fatalf("CheckAndConsume: %v", err)
	}
	if !d.Allowed || d.Remaining != 6 {
		t.Errorf("got allowed=%v remaining=%d, want true/6", d.Allowed, d.Remaining)
	}
}

func TestCheckAndConsume_AtLimitDeniesWithoutMutation(t *testing.T) {
	g, st, acct := newTestGate(t, 2)

	for i := 0; i < 2; i++ {
		if d, _ := g.CheckAndConsume(acct.ID); !d.Allowed {
			t.Fatalf("denied before limit at use %d", i+1)
		}
	}

	d, err := g.CheckAndConsume(acct.ID)
	if err != nil {
		t.Fatalf("CheckAndConsume: %v", err)
	}
	if d.Allowed {
		t.Error("allowed past the limit")
	}

	sub, err := st.GetSubscription(acct.ID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub.AIAnalysesUsed != 2 {
		t.Errorf("counter mutated on denial: got %d, want 2", sub.AIAnalysesUsed)
	}
}

func TestCheckAndConsume_ProUnlimited(t *testing.T) {
	g, st, acct := newTestGate(t, 1)

	// Seed the subscription row, then upgrade it.
	if _, err := g.CheckAndConsume(acct.ID); err != nil {
		t.Fatalf("CheckAndConsume: %v", err)
	}
	setPlan(t, st, acct.ID, "pro")

	for i := 0; i < 5; i++ {
		d, err := g.CheckAndConsume(acct.ID)
		if err != nil {
			t.Fatalf("CheckAndConsume: %v", err)
		}
		if !d.Allowed || d.Remaining != Unlimited {
			t.Fatalf("got allowed=%v remaining=%d, want true/unlimited", d.Allowed, d.Remaining)
		}
	}

	// Privileged plans never touch the counter.
	sub, _ := st.GetSubscription(acct.ID)
	if sub.AIAnalysesUsed != 1 {
		t.Errorf("counter moved for pro plan: got %d, want 1", sub.AIAnalysesUsed)
	}
}

func TestCheckAndConsume_LifetimeUnlimited(t *testing.T) {
	g, st, acct := newTestGate(t, 1)

	if _, err := g.Status(acct.ID); err != nil {
		t.Fatalf("Status: %v", err)
	}
	setPlan(t, st, acct.ID, "lifetime")

	d, err := g.CheckAndConsume(acct.ID)
	if err != nil {
		t.Fatalf("CheckAndConsume: %v", err)
	}
	if !d.Allowed || d.Remaining != Unlimited {
		t.Errorf("got allowed=%v remaining=%d", d.Allowed, d.Remaining)
	}
}

func TestStatus_DoesNotConsume(t *testing.T) {
	g, st, acct := newTestGate(t, 10)

	d, err := g.Status(acct.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !d.Allowed || d.Remaining != 10 {
		t.Errorf("got allowed=%v remaining=%d, want true/10", d.Allowed, d.Remaining)
	}

	sub, _ := st.GetSubscription(acct.ID)
	if sub.AIAnalysesUsed != 0 {
		t.Errorf("Status consumed a unit: used=%d", sub.AIAnalysesUsed)
	}
}
