package health

import (
	"errors"
	"testing"
)

func TestRegistry_AddAndGet(t *testing.T) {
	r := NewRegistry()
	reg := Registration{Name: "checkout", Endpoint: "http://checkout", Attributes: map[string]string{"namespace": "shop"}}

	if err := r.Add(reg); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	h, err := r.Get("checkout")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if h.Status != StatusHealthy || h.UptimeScore != 100 || h.ErrorRate != 0 {
		t.Errorf("initial record = %+v, want healthy/100/0", h)
	}
	if h.Attributes["namespace"] != "shop" {
		t.Errorf("Attributes = %v, want namespace=shop", h.Attributes)
	}
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := NewRegistry()
	_ = r.Add(Registration{Name: "checkout", Endpoint: "http://a"})

	err := r.Add(Registration{Name: "checkout", Endpoint: "http://b"})
	if !errors.Is(err, ErrDuplicateService) {
		t.Fatalf("Add() error = %v, want ErrDuplicateService", err)
	}

	h, _ := r.Get("checkout")
	if h.Endpoint != "http://a" {
		t.Errorf("Endpoint = %q, want original http://a", h.Endpoint)
	}
}

func TestRegistry_UnknownService(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Get("ghost"); !errors.Is(err, ErrUnknownService) {
		t.Errorf("Get() error = %v, want ErrUnknownService", err)
	}
	_, _, err := r.Update("ghost", func(h ServiceHealth) ServiceHealth { return h })
	if !errors.Is(err, ErrUnknownService) {
		t.Errorf("Update() error = %v, want ErrUnknownService", err)
	}
}

func TestRegistry_SnapshotsAreCopies(t *testing.T) {
	r := NewRegistry()
	_ = r.Add(Registration{Name: "checkout", Endpoint: "http://a", Attributes: map[string]string{"k": "v"}})

	h, _ := r.Get("checkout")
	h.UptimeScore = 1
	h.Attributes["k"] = "mutated"

	again, _ := r.Get("checkout")
	if again.UptimeScore != 100 || again.Attributes["k"] != "v" {
		t.Errorf("registry record changed through a snapshot: %+v", again)
	}
}

func TestRegistry_OrderAndUnhealthy(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		_ = r.Add(Registration{Name: name, Endpoint: "http://" + name})
	}
	_, _, _ = r.Update("a", func(h ServiceHealth) ServiceHealth {
		h.Status = StatusDown
		return h
	})
	_, _, _ = r.Update("b", func(h ServiceHealth) ServiceHealth {
		h.Status = StatusDegraded
		return h
	})

	all := r.All()
	if len(all) != 3 || all[0].Name != "c" || all[1].Name != "a" || all[2].Name != "b" {
		t.Errorf("All() order = %v, want [c a b]", names(all))
	}

	unhealthy := r.Unhealthy()
	if len(unhealthy) != 2 || unhealthy[0].Name != "a" || unhealthy[1].Name != "b" {
		t.Errorf("Unhealthy() = %v, want [a b]", names(unhealthy))
	}
}

func names(hs []ServiceHealth) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.Name
	}
	return out
}
