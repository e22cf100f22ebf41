package taskengine

// Token is a single, opaque work item. The engine never inspects a token
// beyond passing it to callables and, for the default callback chooser,
// reading its feature map. Typed token payloads are explicitly a non-goal
// (§1) — callers model their own token types and cast inside callbacks.
type Token interface {
	// GetFeature looks up a legacy feature key used by the default
	// callback chooser to select a program by key (§6). Tokens with no
	// notion of features should always return ("", false).
	GetFeature(name string) (string, bool)
}

// ChooserFunc selects a CallbackTree key for a token. The default chooser
// reads the "type" feature, falling back to DefaultKey.
type ChooserFunc func(tok Token) string

// DefaultChooser implements §6's Token contract: GetFeature("type") selects
// the program keyed by that string, else "*".
func DefaultChooser(tok Token) string {
	if v, ok := tok.GetFeature("type"); ok && v != "" {
		return v
	}
	return DefaultKey
}

// MapToken is a minimal Token backed by a plain map, handy for tests and
// small programs that don't need a custom token type.
type MapToken map[string]any

// GetFeature implements Token.
func (m MapToken) GetFeature(name string) (string, bool) {
	v, ok := m[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
