package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

var (
	keyForceQuit = key.NewBinding(key.WithKeys("ctrl+c"))
	keyLogs      = key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "logs"))

	keyQuit  = key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit"))
	keyBack  = key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q/esc", "go back"))
	keyClose = key.NewBinding(key.WithKeys("esc", "enter", "q"), key.WithHelp("esc", "close"))

	keyFocus      = key.NewBinding(key.WithKeys("tab"), key.WithHelp("⇥", "focus"))
	keyMode       = key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "mode"))
	keyHighlight  = key.NewBinding(key.WithKeys("h"), key.WithHelp("h", "highlight"))
	keyUnchanged  = key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unchanged"))
	keyFullscreen = key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "fullscreen"))
	keyGrow       = key.NewBinding(key.WithKeys("+"), key.WithHelp("+/-", "resize"))
	keyShrink     = key.NewBinding(key.WithKeys("-"))
	keyExpand     = key.NewBinding(key.WithKeys("right", "enter", "l", " "), key.WithHelp("⏎", "toggle"))
	keyCollapse   = key.NewBinding(key.WithKeys("left"))
	keyAutoscroll = key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "autoscroll"))
	keyMinLevel   = key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "level"))

	keyUp       = key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/↓/pgup/pgdn", "scroll"))
	keyDown     = key.NewBinding(key.WithKeys("down", "j"))
	keyPageUp   = key.NewBinding(key.WithKeys("pgup"))
	keyPageDown = key.NewBinding(key.WithKeys("pgdown"))
	keyLeft     = key.NewBinding(key.WithKeys("left"), key.WithHelp("↑/↓/←/→", "move"))
	keyRight    = key.NewBinding(key.WithKeys("right"))
)

// described returns b with its help text replaced by desc.
func described(b key.Binding, desc string) key.Binding {
	b.SetHelp(b.Help().Key, desc)
	return b
}

// Shortcuts is the help line of a view.
type Shortcuts []key.Binding

func NewShortcuts(bindings ...key.Binding) *Shortcuts {
	s := Shortcuts(bindings)
	return &s
}

func (s *Shortcuts) Add(b key.Binding) *Shortcuts {
	*s = append(*s, b)
	return s
}

func (s *Shortcuts) AddIf(cond bool, b key.Binding) *Shortcuts {
	if cond {
		s.Add(b)
	}
	return s
}

func (s *Shortcuts) Render(theme Theme) string {
	var bob strings.Builder
	for i, b := range *s {
		if i != 0 {
			bob.WriteString(theme.MutedTextStyle.Render(", "))
		}
		h := b.Help()
		bob.WriteString(h.Key)
		bob.WriteString(" ")
		bob.WriteString(theme.MutedTextStyle.Render(h.Desc))
	}
	return bob.String()
}
