// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "testing"

func TestArgParser(t *testing.T) {
	tests := []struct {
		name  string
		raw   []string
		check func(t *testing.T, p *ArgParser)
	}{
		{
			name: "subcommand with flags",
			raw:  []string{"history", "--limit", "5", "--json"},
			check: func(t *testing.T, p *ArgParser) {
				if p.Subcommand() != "history" {
					t.Errorf("Subcommand = %q", p.Subcommand())
				}
				if p.IntFlag("limit", 0) != 5 {
					t.Errorf("limit = %d", p.IntFlag("limit", 0))
				}
				if !p.BoolFlag("json") {
					t.Error("json flag not set")
				}
			},
		},
		{
			name: "equals form",
			raw:  []string{"chat", "--module=m42", "--markdown=false"},
			check: func(t *testing.T, p *ArgParser) {
				if p.Flag("module") != "m42" {
					t.Errorf("module = %q", p.Flag("module"))
				}
				if v, ok := p.boolFlags["markdown"]; !ok || v {
					t.Errorf("markdown = %v, %v", v, ok)
				}
			},
		},
		{
			name: "short flag",
			raw:  []string{"-m", "m1"},
			check: func(t *testing.T, p *ArgParser) {
				if p.Flag("m") != "m1" {
					t.Errorf("m = %q", p.Flag("m"))
				}
			},
		},
		{
			name: "positional after subcommand",
			raw:  []string{"open", "42"},
			check: func(t *testing.T, p *ArgParser) {
				pos := p.Positional()
				if len(pos) != 1 || pos[0] != "42" {
					t.Errorf("positional = %v", pos)
				}
			},
		},
		{
			name: "defaults",
			raw:  nil,
			check: func(t *testing.T, p *ArgParser) {
				if p.Subcommand() != "" {
					t.Errorf("Subcommand = %q", p.Subcommand())
				}
				if p.FlagOr("module", "def") != "def" {
					t.Errorf("FlagOr = %q", p.FlagOr("module", "def"))
				}
				if p.IntFlag("limit", 7) != 7 {
					t.Errorf("IntFlag default = %d", p.IntFlag("limit", 7))
				}
			},
		},
		{
			name: "unparseable int falls back",
			raw:  []string{"--limit", "many"},
			check: func(t *testing.T, p *ArgParser) {
				if p.IntFlag("limit", 3) != 3 {
					t.Errorf("IntFlag = %d", p.IntFlag("limit", 3))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, NewArgParser(tt.raw))
		})
	}
}
