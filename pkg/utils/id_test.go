package utils

import (
	"strings"
	"sync"
	"testing"
)

func TestGenerateRunID(t *testing.T) {
	id := GenerateRunID()
	if !strings.HasPrefix(id, "cal-") {
		t.Errorf("expected cal- prefix, got %s", id)
	}
	if err := ValidateRunID(id); err != nil {
		t.Errorf("generated id should be valid: %v", err)
	}
}

func TestGenerateRunIDUnique(t *testing.T) {
	var mu sync.Mutex
	var wg sync.WaitGroup
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := GenerateRunID()
			mu.Lock()
			ids[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(ids) != 100 {
		t.Errorf("expected 100 unique ids, got %d", len(ids))
	}
}

func TestGenerateRequestID(t *testing.T) {
	if GenerateRequestID() == GenerateRequestID() {
		t.Error("expected unique request ids")
	}
}

func TestValidateRunID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"", false},
		{"my-run", false},
		{"bad/run", true},
		{"bad:stop", true},
		{strings.Repeat("a", 129), true},
	}
	for _, tt := range tests {
		err := ValidateRunID(tt.id)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateRunID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
		}
	}
}
