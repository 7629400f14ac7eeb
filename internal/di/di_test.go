package di

import (
	"sync"
	"sync/atomic"
	"testing"
)

type widget struct{ id int }

func TestContainer_RegisterAndGet(t *testing.T) {
	c := NewContainer()
	c.Register("config", "value")

	if got := c.Get("config"); got != "value" {
		t.Fatalf("Get = %v, want value", got)
	}
	if !c.Has("config") {
		t.Error("Has(config) = false")
	}
	if c.Has("missing") {
		t.Error("Has(missing) = true")
	}
}

func TestContainer_FactoryCalledOnce(t *testing.T) {
	c := NewContainer()
	var calls atomic.Int32

	tok := NewToken[*widget]("widget")
	RegisterToken(c, tok, func(ServiceRegistry) *widget {
		calls.Add(1)
		return &widget{id: 7}
	})

	var wg sync.WaitGroup
	results := make([]*widget, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = GetToken(c, tok)
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("factory called %d times, want 1", calls.Load())
	}
	for _, r := range results {
		if r != results[0] || r.id != 7 {
			t.Fatal("expected the same instance everywhere")
		}
	}
}

func TestContainer_FactoryResolvesDependencies(t *testing.T) {
	c := NewContainer()
	c.Register("base", 40)

	tok := NewToken[int]("sum")
	RegisterToken(c, tok, func(sr ServiceRegistry) int {
		return sr.Get("base").(int) + 2
	})

	if got := GetToken(c, tok); got != 42 {
		t.Fatalf("GetToken = %d, want 42", got)
	}
}

func TestContainer_MissingPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unregistered service")
		}
	}()
	NewContainer().Get("nope")
}
