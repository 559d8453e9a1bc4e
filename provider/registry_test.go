package provider

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type stubProvider struct{ name string }

func (s stubProvider) Name() string { return s.name }
func (s stubProvider) Chat(context.Context, []Message) (*Response, error) {
	return &Response{Content: "ok"}, nil
}

func TestRegistry_RegisterAndNew(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("Stub", func(Config) (Provider, error) { return stubProvider{"stub"}, nil }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("stub", func(Config) (Provider, error) { return nil, nil }); err == nil {
		t.Error("expected duplicate registration error")
	}

	p, err := r.New("STUB", Config{})
	if err != nil || p.Name() != "stub" {
		t.Errorf("New = %v, %v", p, err)
	}
	if _, err := r.New("missing", Config{}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestBuiltin(t *testing.T) {
	r := Builtin()
	if got, want := r.Names(), []string{"anthropic", "openai"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}
	if _, err := r.New("openai", Config{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("openai without key = %v", err)
	}
	p, err := r.New("anthropic", Config{APIKey: "k"})
	if err != nil || p.Name() != "anthropic" {
		t.Errorf("anthropic = %v, %v", p, err)
	}
}
