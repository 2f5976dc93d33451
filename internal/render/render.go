// Package render formats mailboxes and messages for the terminal.
package render

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/postale/postale/internal/model"
	"github.com/postale/postale/internal/sync"
	"github.com/postale/postale/internal/theme"
)

const subjectWidth = 48

// Mailboxes renders the mailbox list. Passwords are never shown.
func Mailboxes(mbs []model.Mailbox) string {
	var b strings.Builder
	b.WriteString(theme.HeaderStyle.Render("Mailboxes"))
	b.WriteString("\n")

	if len(mbs) == 0 {
		b.WriteString(theme.HelpStyle.Render("No mailboxes. Add one with: postale login <url> <address>"))
		b.WriteString("\n")
		return b.String()
	}

	for _, mb := range mbs {
		fmt.Fprintf(&b, "%s  %s\n", theme.IDStyle.Render(fmt.Sprintf("%4d", mb.ID)), mb.String())
	}
	return b.String()
}

// Kind classifies msg relative to the local addresses.
func Kind(msg model.Message, local []string) string {
	switch {
	case msg.IsDraft:
		return theme.KindDraft
	case slices.Contains(local, msg.Sender):
		return theme.KindSent
	default:
		return theme.KindReceived
	}
}

// Messages renders a titled message list, one line per message.
func Messages(title string, msgs []model.Message, local []string) string {
	var b strings.Builder
	b.WriteString(theme.HeaderStyle.Render(title))
	b.WriteString("\n")

	if len(msgs) == 0 {
		b.WriteString(theme.HelpStyle.Render("No messages."))
		b.WriteString("\n")
		return b.String()
	}

	for _, msg := range msgs {
		kind := Kind(msg, local)
		peer := msg.Sender
		if kind != theme.KindReceived {
			peer = "to " + strings.Join(msg.Recipients, ", ")
		}
		subject := msg.Subject
		if subject == "" {
			subject = "(no subject)"
		}

		fmt.Fprintf(&b, "%s %s %s  %s\n",
			theme.IDStyle.Render(fmt.Sprintf("%4d", msg.ID)),
			theme.KindStyle(kind).Render(fmt.Sprintf("%-5s", kind)),
			truncate(subject, subjectWidth),
			lipgloss.NewStyle().Foreground(theme.ColorGray).Render(peer),
		)
	}
	return b.String()
}

// Message renders a single message with its header fields and body.
func Message(msg model.Message) string {
	var sections []string

	subject := msg.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(subject))

	field := func(name, value string) string {
		return theme.FieldLabelStyle.Render(name+":") + " " + value
	}
	sections = append(sections,
		field("ID", fmt.Sprintf("%d", msg.ID)),
		field("From", msg.Sender),
		field("To", strings.Join(msg.Recipients, ", ")),
	)
	if msg.IsDraft {
		sections = append(sections, theme.KindStyle(theme.KindDraft).Render("DRAFT"))
	}

	body := msg.Content
	if strings.TrimSpace(body) == "" {
		body = theme.HelpStyle.Render("(empty)")
	}
	sections = append(sections, theme.DetailPanelStyle.Render(body))

	return strings.Join(sections, "\n") + "\n"
}

// SyncResults renders the outcome of one fetch round.
func SyncResults(results []sync.SyncResult) string {
	var b strings.Builder
	for _, r := range results {
		if r.Error != nil {
			msg := r.Error.Error()
			if r.AuthFail {
				msg = "authentication failed, run login again"
			}
			fmt.Fprintf(&b, "%s %s: %s\n", theme.ErrorStyle.Render("✗"), r.Address, msg)
			continue
		}
		fmt.Fprintf(&b, "%s %s: %d new\n",
			theme.SyncStateStyle(sync.SyncIdle.String()).Render("✓"), r.Address, r.Saved)
	}
	return b.String()
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s + strings.Repeat(" ", n-len(r))
	}
	return string(r[:n-1]) + "…"
}
