package shell

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// field — однострочное поле ввода; курсор всегда в конце.
type field struct {
	label  string
	value  string
	secret bool
}

// handle применяет клавишу к полю. Возвращает false, если клавиша не про ввод текста.
func (f *field) handle(msg tea.KeyMsg) bool {
	switch msg.Type {
	case tea.KeyRunes:
		f.value += string(msg.Runes)
	case tea.KeySpace:
		f.value += " "
	case tea.KeyBackspace:
		if r := []rune(f.value); len(r) > 0 {
			f.value = string(r[:len(r)-1])
		}
	default:
		return false
	}
	return true
}

func (f field) render(b *strings.Builder, focused bool) {
	marker := " "
	if focused {
		marker = ">"
	}
	value := f.value
	if f.secret {
		value = strings.Repeat("*", len([]rune(value)))
	}
	cursor := ""
	if focused {
		cursor = "_"
	}
	fmt.Fprintf(b, " %s %-10s %s%s\n", marker, f.label+":", value, cursor)
}

// focusRing — индекс активного поля с циклическим переходом по tab / shift+tab.
type focusRing struct {
	index int
	size  int
}

func (r *focusRing) next() { r.index = (r.index + 1) % r.size }

func (r *focusRing) prev() { r.index = (r.index - 1 + r.size) % r.size }
