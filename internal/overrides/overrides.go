// Package overrides parses "key=value" configuration overrides whose values use
// TOML literal syntax, and renders them back for the engine command line.
package overrides

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/taskbridge/internal/errors"
)

// sentinelKey wraps a bare value so it can be parsed as a TOML document.
const sentinelKey = "_x_"

// Entry is a single override. Key is a dotted path; Value is the typed value
// (string, int64, float64, bool, []any, map[string]any, or a TOML date/time).
type Entry struct {
	Key   string
	Value any
}

// String renders the entry in key=value form with a TOML literal value.
func (e Entry) String() string {
	lit, err := Literal(e.Value)
	if err != nil {
		return fmt.Sprintf("%s=%v", e.Key, e.Value)
	}
	return e.Key + "=" + lit
}

// Pair is an override as supplied by a caller: a dotted key and the raw text
// of its value.
type Pair struct {
	Key   string
	Value string
}

// Typed converts p into an Entry, interpreting the value with ParseValue.
func (p Pair) Typed() (Entry, error) {
	key := strings.TrimSpace(p.Key)
	if key == "" {
		return Entry{}, errors.NewValidationError("override key is empty").WithValue(p.Key + "=" + p.Value)
	}
	return Entry{Key: key, Value: ParseValue(p.Value)}, nil
}

// Typed converts every pair, stopping at the first invalid one.
func Typed(pairs []Pair) ([]Entry, error) {
	entries := make([]Entry, 0, len(pairs))
	for _, p := range pairs {
		e, err := p.Typed()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SplitPair splits "key=value" at the first '='.
func SplitPair(raw string) (Pair, error) {
	key, value, ok := strings.Cut(raw, "=")
	if !ok {
		return Pair{}, errors.NewValidationError("override must be in key=value form").WithValue(raw)
	}
	return Pair{Key: key, Value: value}, nil
}

// Parse parses one "key=value" override. The value is interpreted as a TOML
// literal; when that fails it is kept verbatim as a string.
func Parse(raw string) (Entry, error) {
	p, err := SplitPair(raw)
	if err != nil {
		return Entry{}, err
	}
	return p.Typed()
}

// ParseAll parses every override, stopping at the first malformed one.
func ParseAll(raws []string) ([]Entry, error) {
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		e, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ParseValue interprets raw as a TOML literal. Text that is not a valid
// literal is returned unchanged as a string.
func ParseValue(raw string) any {
	var doc map[string]any
	if err := toml.Unmarshal([]byte(sentinelKey+" = "+strings.TrimSpace(raw)), &doc); err == nil {
		if v, ok := doc[sentinelKey]; ok {
			return v
		}
	}
	return raw
}

// Literal renders v as a TOML literal, with tables written inline.
func Literal(v any) (string, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf).SetTablesInline(true)
	if err := enc.Encode(map[string]any{sentinelKey: v}); err != nil {
		return "", fmt.Errorf("encode override value: %w", err)
	}

	out := strings.TrimSpace(buf.String())
	_, lit, ok := strings.Cut(out, "=")
	if !ok {
		return "", fmt.Errorf("encode override value: unexpected output %q", out)
	}
	return strings.TrimSpace(lit), nil
}

// Args renders entries as repeated "-c key=value" command-line arguments.
func Args(entries []Entry) ([]string, error) {
	args := make([]string, 0, len(entries)*2)
	for _, e := range entries {
		lit, err := Literal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("override %s: %w", e.Key, err)
		}
		args = append(args, "-c", e.Key+"="+lit)
	}
	return args, nil
}

// ApplyTo sets every entry on v, later entries winning.
func ApplyTo(v *viper.Viper, entries []Entry) {
	for _, e := range entries {
		v.Set(e.Key, e.Value)
	}
}
