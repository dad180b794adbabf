package ratelimit

import (
	"testing"
	"time"
)

func TestFixedWindowAdmitsUpToCapacity(t *testing.T) {
	fw := NewFixedWindow(3, time.Minute)
	defer fw.Stop()

	for i := 0; i < 3; i++ {
		ok, _ := fw.Admit("client-a")
		if !ok {
			t.Fatalf("attempt %d rejected, want admitted", i+1)
		}
	}

	ok, retryAfter := fw.Admit("client-a")
	if ok {
		t.Error("attempt over capacity admitted, want rejected")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Errorf("retryAfter = %v, want in (0, 1m]", retryAfter)
	}
}

func TestFixedWindowIsolatesIdentities(t *testing.T) {
	fw := NewFixedWindow(1, time.Minute)
	defer fw.Stop()

	if ok, _ := fw.Admit("client-a"); !ok {
		t.Fatal("first attempt for client-a rejected")
	}
	if ok, _ := fw.Admit("client-a"); ok {
		t.Error("second attempt for client-a admitted, want rejected")
	}
	if ok, _ := fw.Admit("client-b"); !ok {
		t.Error("first attempt for client-b rejected, identities must be isolated")
	}
}

func TestFixedWindowResets(t *testing.T) {
	fw := NewFixedWindow(1, 20*time.Millisecond)
	defer fw.Stop()

	if ok, _ := fw.Admit("client-a"); !ok {
		t.Fatal("first attempt rejected")
	}
	if ok, _ := fw.Admit("client-a"); ok {
		t.Fatal("second attempt admitted inside the window")
	}

	time.Sleep(30 * time.Millisecond)

	if ok, _ := fw.Admit("client-a"); !ok {
		t.Error("attempt after window expiry rejected, want admitted")
	}
}

func TestManagerWhitelistBypassesLimit(t *testing.T) {
	m := NewManager(&Config{
		Enabled:           true,
		RequestsPerWindow: 1,
		Window:            time.Minute,
		WhitelistedIPs:    []string{"127.0.0.1"},
	})
	defer m.Stop()

	for i := 0; i < 10; i++ {
		if ok, _ := m.Admit("127.0.0.1"); !ok {
			t.Fatalf("whitelisted identity rejected on attempt %d", i+1)
		}
	}

	if ok, _ := m.Admit("10.0.0.1"); !ok {
		t.Fatal("first attempt for non-whitelisted identity rejected")
	}
	if ok, _ := m.Admit("10.0.0.1"); ok {
		t.Error("second attempt for non-whitelisted identity admitted, want rejected")
	}
}

func TestManagerDisabledAdmitsEverything(t *testing.T) {
	m := NewManager(&Config{Enabled: false})
	defer m.Stop()

	for i := 0; i < 100; i++ {
		if ok, _ := m.Admit("client-a"); !ok {
			t.Fatalf("disabled limiter rejected attempt %d", i+1)
		}
	}
}
