package shell

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vladislavdragonenkov/minicrm/internal/domain"
)

type signInView struct {
	email    field
	password field
	focus    focusRing
	signUp   bool
	busy     bool
	err      string
}

func newSignInView() signInView {
	return signInView{
		email:    field{label: "Email"},
		password: field{label: "Password", secret: true},
		focus:    focusRing{size: 2},
	}
}

func (v *signInView) reset() {
	v.email.value, v.password.value = "", ""
	v.focus.index = 0
	v.err = ""
}

func (v *signInView) active() *field {
	if v.focus.index == 0 {
		return &v.email
	}
	return &v.password
}

func (m Model) updateSignIn(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := &m.signIn
	switch msg.String() {
	case "tab", "down":
		v.focus.next()
	case "shift+tab", "up":
		v.focus.prev()
	case "ctrl+n":
		if v.signUp {
			m.navigate(domain.RouteSignIn)
		} else {
			m.navigate(domain.RouteSignUp)
		}
	case "esc":
		return m, tea.Quit
	case "enter":
		if v.busy {
			return m, nil
		}
		v.busy = true
		v.err = ""
		return m, m.authenticate(domain.Credentials{Email: v.email.value, Password: v.password.value}, v.signUp)
	default:
		v.active().handle(msg)
	}
	return m, nil
}

func (m Model) authenticate(creds domain.Credentials, signUp bool) tea.Cmd {
	ctx, auth := m.ctx, m.auth
	return func() tea.Msg {
		var err error
		if signUp {
			_, err = auth.SignUp(ctx, creds)
		} else {
			_, err = auth.SignIn(ctx, creds)
		}
		return authDoneMsg{err: err}
	}
}

func (v signInView) render(b *strings.Builder) {
	title, hint := "Sign in", "ctrl+n: create an account"
	if v.signUp {
		title, hint = "Sign up", "ctrl+n: back to sign in"
	}
	fmt.Fprintf(b, "%s\n\n", title)
	v.email.render(b, v.focus.index == 0)
	v.password.render(b, v.focus.index == 1)
	b.WriteString("\n")
	switch {
	case v.busy:
		b.WriteString("Signing in...\n")
	case v.err != "":
		fmt.Fprintf(b, "Error: %s\n", v.err)
	}
	fmt.Fprintf(b, "\nControls: tab switch field, enter submit, %s, esc quit\n", hint)
}
