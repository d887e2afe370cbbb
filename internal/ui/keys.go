package ui

import "strings"

// Shortcuts is the key-hint list shown in the status bar at the bottom of
// the watch screen. Hints render in the order they were declared.
type Shortcuts []keyHint

type keyHint struct {
	key   string
	label string
}

// NewShortcuts builds the list from alternating key/label pairs.
func NewShortcuts(pairs ...string) *Shortcuts {
	if len(pairs)%2 != 0 {
		panic("shortcuts must be in pairs")
	}
	s := make(Shortcuts, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		s = append(s, keyHint{key: pairs[i], label: pairs[i+1]})
	}
	return &s
}

func (s *Shortcuts) Render(theme Theme) string {
	var b strings.Builder
	for i, h := range *s {
		if i != 0 {
			b.WriteString(theme.MutedTextStyle.Render(", "))
		}
		b.WriteString(h.key)
		b.WriteString(" ")
		b.WriteString(theme.MutedTextStyle.Render(h.label))
	}
	return b.String()
}
