package reloadview

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Rebuild    key.Binding
	AutoReload key.Binding
	MoreBuilds key.Binding
	FewerBuild key.Binding
	Up         key.Binding
	Down       key.Binding
	Load       key.Binding
	Preview    key.Binding
	Flash      key.Binding
	Tree       key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Rebuild:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rebuild")),
		AutoReload: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "toggle auto reload")),
		MoreBuilds: key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "keep more builds")),
		FewerBuild: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "keep fewer builds")),
		Up:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "up")),
		Down:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "down")),
		Load:       key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "load selected")),
		Preview:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "toggle preview")),
		Flash:      key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "flash redraws")),
		Tree:       key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "export object tree")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Rebuild, k.AutoReload, k.Load, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Rebuild, k.AutoReload, k.MoreBuilds, k.FewerBuild},
		{k.Up, k.Down, k.Load},
		{k.Preview, k.Flash, k.Tree},
		{k.Help, k.Quit},
	}
}
