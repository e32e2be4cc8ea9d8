package policy

import (
	"reflect"
	"testing"
)

func TestAllowModePermitsEverything(t *testing.T) {
	eng := NewImportPolicy("allow", []string{"os"})
	d := eng.Evaluate(Context{Tool: "execute_python_code", Code: "import os\nprint(os.getcwd())"})
	if !d.Allow {
		t.Fatalf("allow mode should permit imports, got: %s", d.Reason)
	}
}

func TestUnknownModeFallsBackToAllow(t *testing.T) {
	eng := NewImportPolicy("strict", nil)
	if eng.Mode != ModeAllow {
		t.Fatalf("expected allow mode, got %q", eng.Mode)
	}
}

func TestDenyModeUsesDefaultModules(t *testing.T) {
	eng := NewImportPolicy("DENY", nil)
	if !reflect.DeepEqual(eng.Modules, []string{"os", "subprocess"}) {
		t.Fatalf("unexpected default modules: %v", eng.Modules)
	}
}

func TestDenyModeBlocksImports(t *testing.T) {
	eng := NewImportPolicy("deny", []string{"os", "subprocess"})
	cases := []struct {
		code   string
		module string
	}{
		{"import os", "os"},
		{"import sys, subprocess", "subprocess"},
		{"from os import path", "os"},
		{"from os.path import join", "os"},
		{"import os.path as p", "os"},
		{"x = __import__('subprocess')", "subprocess"},
		{"import importlib\nm = importlib.import_module(\"os\")", "os"},
		{"print(1); import os", "os"},
	}
	for _, tc := range cases {
		d := eng.Evaluate(Context{Code: tc.code})
		if d.Allow {
			t.Errorf("expected %q to be denied", tc.code)
			continue
		}
		if d.Module != tc.module {
			t.Errorf("code %q: expected blocked module %q, got %q", tc.code, tc.module, d.Module)
		}
		if d.Reason != "import_denied: "+tc.module {
			t.Errorf("unexpected reason: %s", d.Reason)
		}
	}
}

func TestDenyModeAllowsOtherCode(t *testing.T) {
	eng := NewImportPolicy("deny", nil)
	for _, code := range []string{
		"print(5+10)",
		"import math\nprint(math.pi)",
		"import osmosis",
		"# import os\nprint('comment only')",
	} {
		if d := eng.Evaluate(Context{Code: code}); !d.Allow {
			t.Errorf("expected %q to be allowed, got %s", code, d.Reason)
		}
	}
}

func TestNilPolicyAllows(t *testing.T) {
	var p *ImportPolicy
	if d := p.Evaluate(Context{Code: "import os"}); !d.Allow {
		t.Fatal("nil policy should allow")
	}
}

func TestImportedModulesOrderAndDedup(t *testing.T) {
	got := ImportedModules("import json\nfrom collections import deque\nimport json as j\nimport a.b, c")
	want := []string{"json", "collections", "a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ImportedModules = %v, want %v", got, want)
	}
}
