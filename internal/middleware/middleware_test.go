package middleware

import (
	"testing"

	"github.com/tjfontaine/stagehand/internal/di"
)

func TestKindOf_Interned(t *testing.T) {
	if KindOf("auth") != KindOf("auth") {
		t.Error("kinds with the same name should be identical")
	}
	if KindOf("auth") == KindOf("general") {
		t.Error("distinct names should yield distinct kinds")
	}
	if KindOf("") != Always {
		t.Error("empty name should be the always kind")
	}
}

func TestDefinition(t *testing.T) {
	mw := New("validation", di.Injectable{}, di.Injectable{})
	if mw.Kind().Name() != "validation" || mw.Kind().IsAlways() {
		t.Errorf("unexpected kind %s", mw.Kind())
	}
	if !mw.Enter().IsZero() || !mw.Leave().IsZero() {
		t.Error("expected zero steps")
	}

	var bare Definition
	if !bare.Kind().IsAlways() {
		t.Error("a definition without a stage should run always")
	}
	if got := Always.String(); got != "always" {
		t.Errorf("Always.String() = %q", got)
	}
}
