package adapters

import (
	"strings"
	"testing"
)

func TestRegistry_FindAdapter(t *testing.T) {
	registry := NewRegistry()

	tests := []struct {
		file     string
		expected string
	}{
		{"main.py", "python"},
		{"app.js", "js"},
		{"View.JSX", "js"},
		{"Main.java", "java"},
		{"lib.c", "c"},
		{"lib.cpp", "c"},
		{"lib.hpp", "c"},
		{"notes.txt", "python"},
		{"Makefile", "python"},
	}

	for _, tt := range tests {
		if got := registry.FindAdapter(tt.file).Name(); got != tt.expected {
			t.Errorf("FindAdapter(%q) = %s, expected %s", tt.file, got, tt.expected)
		}
	}
}

func TestPythonAdapter_Extract(t *testing.T) {
	src := `import os

@decorator
def first(a, b):
    """Docstring.

Continues at column zero.
"""
    return a + b


class Greeter:
    def greet(self, name):
        return "hi " + name

    def wave(self):
        pass

def wrapped(a,
        b):
    return a
x = 1
`
	blocks := NewPythonAdapter().Extract(src, "mod.py")
	if len(blocks) != 5 {
		for _, b := range blocks {
			t.Logf("block: %q", b.Text)
		}
		t.Fatalf("expected 5 blocks, got %d", len(blocks))
	}

	if !strings.HasPrefix(blocks[0].Text, "@decorator\ndef first") {
		t.Errorf("expected decorator to lead the first block, got %q", blocks[0].Text)
	}
	if !strings.HasSuffix(blocks[0].Text, "return a + b") {
		t.Errorf("expected docstring at column zero to stay inside the block, got %q", blocks[0].Text)
	}

	if !strings.HasPrefix(blocks[1].Text, "class Greeter:") || !strings.Contains(blocks[1].Text, "def wave") {
		t.Errorf("expected class block to include its methods, got %q", blocks[1].Text)
	}
	if blocks[2].Text != "def greet(self, name):\n        return \"hi \" + name" {
		t.Errorf("unexpected method block %q", blocks[2].Text)
	}
	if strings.Contains(blocks[4].Text, "x = 1") {
		t.Errorf("expected block to stop at dedent, got %q", blocks[4].Text)
	}

	for _, b := range blocks {
		if b.File != "mod.py" || b.Language != "python" {
			t.Errorf("expected origin mod.py/python, got %s/%s", b.File, b.Language)
		}
	}
}

func TestJSAdapter_Extract(t *testing.T) {
	src := `function add(a, b) {
  // a } in a comment
  return a + b;
}

const mul = (a, b) => {
  const s = "{";
  return a * b;
};

export class Counter extends Base {
  inc() { this.n++; }
}

if (ready) {
  start();
}
`
	blocks := NewJSAdapter().Extract(src, "app.js")
	if len(blocks) != 3 {
		for _, b := range blocks {
			t.Logf("block: %q", b.Text)
		}
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}

	if !strings.HasSuffix(blocks[0].Text, "return a + b;\n}") {
		t.Errorf("expected comment brace to be ignored, got %q", blocks[0].Text)
	}
	if !strings.HasPrefix(blocks[1].Text, "const mul") || !strings.HasSuffix(blocks[1].Text, "}") {
		t.Errorf("unexpected arrow function block %q", blocks[1].Text)
	}
	if !strings.HasPrefix(blocks[2].Text, "export class Counter") {
		t.Errorf("unexpected class block %q", blocks[2].Text)
	}
}

func TestJavaAdapter_Extract(t *testing.T) {
	src := `public class Shop {
    private int total;

    public Shop(int total) {
        this.total = total;
    }

    public static Map<String, Integer> prices() throws IOException {
        if (total > 0) {
            return null;
        }
        return new HashMap<>();
    }
}
`
	blocks := NewJavaAdapter().Extract(src, "Shop.java")
	if len(blocks) != 3 {
		for _, b := range blocks {
			t.Logf("block: %q", b.Text)
		}
		t.Fatalf("expected class, constructor and method, got %d blocks", len(blocks))
	}
	if !strings.HasPrefix(blocks[0].Text, "public class Shop") {
		t.Errorf("expected class block first, got %q", blocks[0].Text)
	}
	if !strings.HasPrefix(blocks[1].Text, "public Shop(int total)") {
		t.Errorf("expected constructor block, got %q", blocks[1].Text)
	}
	if !strings.HasPrefix(blocks[2].Text, "public static Map<String, Integer> prices()") {
		t.Errorf("expected generic method block, got %q", blocks[2].Text)
	}
}

func TestCAdapter_Extract(t *testing.T) {
	src := `#include <stdio.h>

typedef struct {
    int x;
    int y;
} Point;

static int add(int a, int b) {
    char c = '}';
    return a + b;
}

int main(void) {
    while (1) {
        break;
    }
    return add(1, 2);
}
`
	blocks := NewCAdapter().Extract(src, "main.c")
	if len(blocks) != 3 {
		for _, b := range blocks {
			t.Logf("block: %q", b.Text)
		}
		t.Fatalf("expected 3 blocks, got %d", len(blocks))
	}
	if !strings.HasSuffix(blocks[0].Text, "} Point;") {
		t.Errorf("expected typedef to include its name, got %q", blocks[0].Text)
	}
	if !strings.HasPrefix(blocks[1].Text, "static int add") || !strings.HasSuffix(blocks[1].Text, "return a + b;\n}") {
		t.Errorf("expected char literal brace to be ignored, got %q", blocks[1].Text)
	}
	if !strings.HasPrefix(blocks[2].Text, "int main(void)") {
		t.Errorf("unexpected main block %q", blocks[2].Text)
	}
}

func TestRegistry_PythonFallsBackToJS(t *testing.T) {
	registry := NewRegistry()

	src := "function legacy(x) {\n  return x;\n}\n"
	blocks := registry.Extract(src, "script.unknown")
	if len(blocks) != 1 {
		t.Fatalf("expected JS fallback to find 1 block, got %d", len(blocks))
	}
	if blocks[0].Language != "js" {
		t.Errorf("expected js language on fallback block, got %s", blocks[0].Language)
	}
}

func TestRegistry_EmptySource(t *testing.T) {
	if blocks := NewRegistry().Extract("  \n\t", "empty.py"); len(blocks) != 0 {
		t.Errorf("expected no blocks for blank source, got %d", len(blocks))
	}
}

func TestBraceAdapter_UnbalancedSkipped(t *testing.T) {
	src := "function broken(a) {\n  return a;\n"
	if blocks := NewJSAdapter().Extract(src, "broken.js"); len(blocks) != 0 {
		t.Errorf("expected unbalanced block to be skipped, got %d", len(blocks))
	}
}
