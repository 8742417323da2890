package main

import (
	"strings"

	"mintdrop/internal/catalog"
	"mintdrop/internal/drop"
	"mintdrop/internal/present"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title   lipgloss.Style
	creator lipgloss.Style
	detail  lipgloss.Style
	button  lipgloss.Style
	blocked lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true),
		creator: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		detail:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		button:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		blocked: lipgloss.NewStyle().Faint(true),
		success: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("78")),
		failure: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
	}
}

func renderDrop(c *catalog.Collection, snap drop.Snapshot) string {
	s := newStyles()
	lines := []string{s.title.Render(c.Title)}
	if c.Creator.Name != "" {
		lines = append(lines, s.creator.Render("by "+c.Creator.Name))
	}
	if signedIn := present.SignedIn(snap); signedIn != "" {
		lines = append(lines, s.detail.Render(signedIn))
	}
	lines = append(lines, s.detail.Render(present.Claimed(snap)))

	button := "[ " + present.Button(snap) + " ]"
	if snap.Affordance == drop.Ready {
		lines = append(lines, s.button.Render(button))
	} else {
		lines = append(lines, s.blocked.Render(button))
	}
	return strings.Join(lines, "\n")
}

func renderOutcome(o drop.Outcome) string {
	s := newStyles()
	if o.Failed() {
		return s.failure.Render(present.Notification(o))
	}
	return s.success.Render(present.Notification(o))
}
