package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func proposalSpec() KindSpec {
	return KindSpec{
		Initial: "PROPOSED",
		Transitions: map[Status][]Status{
			"PROPOSED": {"APPROVED", "REJECTED"},
			"APPROVED": {"ACTIVE"},
		},
		Capabilities: map[TransitionKey]Capability{
			{From: "PROPOSED", To: "APPROVED"}: "registry:write",
		},
	}
}

func newProposalRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	if err := r.RegisterKind("proposal", proposalSpec()); err != nil {
		t.Fatalf("register kind: %v", err)
	}
	return r
}

func TestRegistryCreate(t *testing.T) {
	r := newProposalRegistry(t)
	now := time.Now()

	id, err := r.Create("proposal", "alice", []byte(`{"title":"x"}`), now)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if id != 1 {
		t.Fatalf("id = %d, want 1", id)
	}

	rec, err := r.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Status != "PROPOSED" || rec.Owner != "alice" {
		t.Fatalf("record = %+v", rec)
	}

	if _, err := r.Create("unknown", "alice", nil, now); !IsKind(err, KindInvalidPayload) {
		t.Fatalf("unknown kind: err = %v", err)
	}
}

func TestRegistryMonotonicIDs(t *testing.T) {
	r := newProposalRegistry(t)
	now := time.Now()

	first, _ := r.Create("proposal", "alice", nil, now)
	second, _ := r.Create("proposal", "bob", nil, now)
	if second != first+1 {
		t.Fatalf("ids not monotonic: %d then %d", first, second)
	}
	// Terminal records never free their ids.
	caps := NewCapabilitySet("registry:write")
	if err := r.Transition(first, "APPROVED", "alice", caps, now); err != nil {
		t.Fatal(err)
	}
	third, _ := r.Create("proposal", "carol", nil, now)
	if third != second+1 {
		t.Fatalf("id reused after terminal transition: %d", third)
	}
}

func TestRegistryTransition(t *testing.T) {
	now := time.Now()

	t.Run("capability gate", func(t *testing.T) {
		r := newProposalRegistry(t)
		id, _ := r.Create("proposal", "alice", nil, now)

		err := r.Transition(id, "APPROVED", "mallory", NewCapabilitySet(), now)
		if !IsKind(err, KindUnauthorized) {
			t.Fatalf("err = %v, want UNAUTHORIZED", err)
		}
		rec, _ := r.Get(id)
		if rec.Status != "PROPOSED" {
			t.Fatalf("failed transition moved status: %s", rec.Status)
		}

		if err := r.Transition(id, "APPROVED", "alice", NewCapabilitySet("registry:write"), now); err != nil {
			t.Fatalf("authorized transition failed: %v", err)
		}
	})

	t.Run("illegal edge", func(t *testing.T) {
		r := newProposalRegistry(t)
		id, _ := r.Create("proposal", "alice", nil, now)

		err := r.Transition(id, "ACTIVE", "alice", NewCapabilitySet("registry:write"), now)
		if !IsKind(err, KindInvalidTransition) {
			t.Fatalf("err = %v, want INVALID_TRANSITION", err)
		}
	})

	t.Run("uncapped edge needs no capability", func(t *testing.T) {
		r := newProposalRegistry(t)
		id, _ := r.Create("proposal", "alice", nil, now)

		if err := r.Transition(id, "REJECTED", "anyone", NewCapabilitySet(), now); err != nil {
			t.Fatalf("transition failed: %v", err)
		}
	})

	t.Run("history records every movement", func(t *testing.T) {
		r := newProposalRegistry(t)
		id, _ := r.Create("proposal", "alice", nil, now)
		caps := NewCapabilitySet("registry:write")
		if err := r.Transition(id, "APPROVED", "alice", caps, now); err != nil {
			t.Fatal(err)
		}
		if err := r.Transition(id, "ACTIVE", "alice", caps, now.Add(time.Minute)); err != nil {
			t.Fatal(err)
		}

		rec, _ := r.Get(id)
		if len(rec.History) != 2 {
			t.Fatalf("history length = %d, want 2", len(rec.History))
		}
		if rec.History[0].From != "PROPOSED" || rec.History[1].To != "ACTIVE" {
			t.Fatalf("history = %+v", rec.History)
		}
	})
}

func TestRegistryPayloadValidator(t *testing.T) {
	r := NewRegistry()
	spec := proposalSpec()
	spec.ValidatePayload = func(payload []byte) error {
		var v struct {
			Title string `json:"title"`
		}
		if err := json.Unmarshal(payload, &v); err != nil {
			return err
		}
		if v.Title == "" {
			return ErrInvalidPayload
		}
		return nil
	}
	if err := r.RegisterKind("proposal", spec); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Create("proposal", "alice", []byte(`{}`), time.Now()); !IsKind(err, KindInvalidPayload) {
		t.Fatalf("err = %v, want INVALID_PAYLOAD", err)
	}
	if _, err := r.Create("proposal", "alice", []byte(`{"title":"ok"}`), time.Now()); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
}

func TestRegistryListByOwner(t *testing.T) {
	r := newProposalRegistry(t)
	now := time.Now()
	a1, _ := r.Create("proposal", "alice", nil, now)
	r.Create("proposal", "bob", nil, now)
	a2, _ := r.Create("proposal", "alice", nil, now)

	ids := r.ListByOwner("alice")
	if len(ids) != 2 || ids[0] != a1 || ids[1] != a2 {
		t.Fatalf("ids = %v, want [%d %d]", ids, a1, a2)
	}
}
