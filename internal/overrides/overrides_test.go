package overrides

import (
	"reflect"
	"testing"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/taskbridge/internal/errors"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{"integer", "42", int64(42)},
		{"negative integer", "-3", int64(-3)},
		{"float", "0.5", 0.5},
		{"bool true", "true", true},
		{"bool false", " false ", false},
		{"quoted string", `"gpt-5"`, "gpt-5"},
		{"bare word", "gpt-5", "gpt-5"},
		{"single quoted fallback", "'on-failure", "'on-failure"},
		{"unterminated double quote", `"unterminated`, `"unterminated`},
		{"trailing quote", `it's"`, `it's"`},
		{"spaces kept on fallback", "  two words  ", "  two words  "},
		{"array", `[1, 2]`, []any{int64(1), int64(2)}},
		{"string array", `["a", "b"]`, []any{"a", "b"}},
		{"inline table", `{ mode = "strict", level = 2 }`, map[string]any{"mode": "strict", "level": int64(2)}},
		{"path with slashes", "/tmp/work dir", "/tmp/work dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseValue(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseValue(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	e, err := Parse(" model =o3")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if e.Key != "model" || e.Value != "o3" {
		t.Errorf("Parse() = %+v", e)
	}

	e, err = Parse("sandbox.writable_roots=[\"/a\"]")
	if err != nil {
		t.Fatal(err)
	}
	if e.Key != "sandbox.writable_roots" || !reflect.DeepEqual(e.Value, []any{"/a"}) {
		t.Errorf("Parse() = %+v", e)
	}

	e, err = Parse("url=https://x.test/?a=b")
	if err != nil {
		t.Fatal(err)
	}
	if e.Value != "https://x.test/?a=b" {
		t.Errorf("value should keep later '=' characters, got %v", e.Value)
	}
}

func TestParse_Errors(t *testing.T) {
	for _, raw := range []string{"novalue", "=3", "  =x"} {
		_, err := Parse(raw)
		if !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidInput", raw, err)
		}
	}
}

func TestParseAll(t *testing.T) {
	entries, err := ParseAll([]string{"a=1", "b=true"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Value != int64(1) || entries[1].Value != true {
		t.Errorf("ParseAll() = %+v", entries)
	}

	if _, err := ParseAll([]string{"a=1", "broken"}); err == nil {
		t.Error("expected error for malformed entry")
	}
}

func TestLiteralRoundTrip(t *testing.T) {
	values := []any{
		int64(7),
		true,
		"hello world",
		[]any{int64(1), "two"},
		map[string]any{"inner": "v", "n": int64(1)},
	}
	for _, v := range values {
		lit, err := Literal(v)
		if err != nil {
			t.Fatalf("Literal(%#v) failed: %v", v, err)
		}
		if got := ParseValue(lit); !reflect.DeepEqual(got, v) {
			t.Errorf("round trip of %#v via %q = %#v", v, lit, got)
		}
	}
}

func TestArgs(t *testing.T) {
	args, err := Args([]Entry{
		{Key: "model", Value: "o3"},
		{Key: "max_tokens", Value: int64(10)},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"-c", `model="o3"`, "-c", "max_tokens=10"}
	if len(args) != len(want) {
		t.Fatalf("Args() = %v", args)
	}
	if args[0] != "-c" || args[2] != "-c" || args[3] != want[3] {
		t.Errorf("Args() = %v, want %v", args, want)
	}
	// go-toml may choose literal or basic quoting for strings.
	if args[1] != `model="o3"` && args[1] != `model='o3'` {
		t.Errorf("string override rendered as %q", args[1])
	}
}

func TestApplyTo(t *testing.T) {
	v := viper.New()
	v.SetDefault("model", "default")
	ApplyTo(v, []Entry{
		{Key: "model", Value: "first"},
		{Key: "sandbox.mode", Value: "read-only"},
		{Key: "model", Value: "second"},
	})

	if got := v.GetString("model"); got != "second" {
		t.Errorf("model = %q, want second", got)
	}
	if got := v.GetString("sandbox.mode"); got != "read-only" {
		t.Errorf("sandbox.mode = %q", got)
	}
}

func TestTyped(t *testing.T) {
	entries, err := Typed([]Pair{
		{Key: "model", Value: "o3"},
		{Key: " retries ", Value: "3"},
		{Key: "features", Value: `{ web = true }`},
	})
	if err != nil {
		t.Fatalf("Typed failed: %v", err)
	}
	want := []Entry{
		{Key: "model", Value: "o3"},
		{Key: "retries", Value: int64(3)},
		{Key: "features", Value: map[string]any{"web": true}},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("Typed() = %#v, want %#v", entries, want)
	}

	if _, err := Typed([]Pair{{Key: "", Value: "x"}}); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("empty key error = %v, want ErrInvalidInput", err)
	}
}

func TestSplitPair(t *testing.T) {
	p, err := SplitPair("a.b=c=d")
	if err != nil {
		t.Fatal(err)
	}
	if p.Key != "a.b" || p.Value != "c=d" {
		t.Errorf("SplitPair() = %+v", p)
	}
}
