package taskengine

import "testing"

func TestNewAppliesDefaults(t *testing.T) {
	eng, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if eng.ID() == "" {
		t.Error("New() should assign a generated engine ID by default")
	}
	if eng.Logger() == nil {
		t.Error("New() should default to a non-nil logger")
	}
	if eng.SynchronizeTimeout() == 0 {
		t.Error("New() should default SynchronizeTimeout to a non-zero value")
	}
	if eng.Hooks() == nil {
		t.Error("New() should install default hooks")
	}
}

func TestNewWithOptionsStructAndFunctionalOptions(t *testing.T) {
	eng, err := New(Options{ID: "base"}, WithID("override"))
	if err != nil {
		t.Fatal(err)
	}
	if eng.ID() != "override" {
		t.Errorf("functional Option should apply after the Options struct; ID = %q", eng.ID())
	}
}

func TestNewRejectsUnsupportedOptionType(t *testing.T) {
	_, err := New(42)
	if err == nil {
		t.Fatal("expected an error for an unsupported option type")
	}
	engErr, ok := err.(*EngineError)
	if !ok || engErr.Code != "BAD_OPTION" {
		t.Errorf("expected *EngineError{Code: BAD_OPTION}, got %#v", err)
	}
}

func TestWithChooserOverride(t *testing.T) {
	called := false
	custom := func(tok Token) string {
		called = true
		return "custom"
	}
	eng, err := New(WithChooser(custom))
	if err != nil {
		t.Fatal(err)
	}
	eng.chooser(MapToken{})
	if !called {
		t.Error("WithChooser should install the supplied ChooserFunc")
	}
}
