// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the resolved style set for the session.
type Theme struct {
	Dark bool

	Header       lipgloss.Style
	Sidebar      lipgloss.Style
	SidebarItem  lipgloss.Style
	SidebarSel   lipgloss.Style
	UserLabel    lipgloss.Style
	AILabel      lipgloss.Style
	Placeholder  lipgloss.Style
	StatusBar    lipgloss.Style
	StatusWarn   lipgloss.Style
	StatusError  lipgloss.Style
	InputBox     lipgloss.Style
	InputBlocked lipgloss.Style
}

// ResolveTheme picks dark or light styling. "auto" asks the terminal.
func ResolveTheme(configured string) Theme {
	dark := true
	switch strings.ToLower(configured) {
	case "light":
		dark = false
	case "dark":
		dark = true
	default:
		dark = termenv.HasDarkBackground()
	}

	t := Theme{Dark: dark}

	accent := lipgloss.Color("12")
	muted := lipgloss.Color("8")
	if !dark {
		accent = lipgloss.Color("4")
		muted = lipgloss.Color("7")
	}

	t.Header = lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1)
	t.Sidebar = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderRight(true).BorderForeground(muted)
	t.SidebarItem = lipgloss.NewStyle().Padding(0, 1)
	t.SidebarSel = lipgloss.NewStyle().Padding(0, 1).Bold(true).Foreground(accent)
	t.UserLabel = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	t.AILabel = lipgloss.NewStyle().Bold(true).Foreground(accent)
	t.Placeholder = lipgloss.NewStyle().Italic(true).Foreground(muted)
	t.StatusBar = lipgloss.NewStyle().Foreground(muted).Padding(0, 1)
	t.StatusWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	t.StatusError = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true).Padding(0, 1)
	t.InputBox = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderTop(true).BorderForeground(muted)
	t.InputBlocked = t.InputBox.BorderForeground(lipgloss.Color("9"))
	return t
}

// GlamourStyle names the markdown style matching the theme.
func (t Theme) GlamourStyle() string {
	if t.Dark {
		return "dark"
	}
	return "light"
}
