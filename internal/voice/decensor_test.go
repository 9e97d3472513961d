/*
 * This file is part of Voxhub (https://github.com/vestonlabs/voxhub).
 * Copyright (C) 2026 Veston Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package voice

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDecensor_Clean(t *testing.T) {
	d := NewDecensor(nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "Clean text is a no-op",
			in:   "turn on the kitchen lights",
			want: "turn on the kitchen lights",
		},
		{
			name: "Empty text",
			in:   "",
			want: "",
		},
		{
			name: "Known masked word",
			in:   "what the h*** was that",
			want: "what the hell was that",
		},
		{
			name: "Case preserved on first letter",
			in:   "S*** happens",
			want: "Shit happens",
		},
		{
			name: "Multiple masked words",
			in:   "h*** no that is c***",
			want: "hell no that is crap",
		},
		{
			name: "Mid-word mask",
			in:   "well d*mn that worked",
			want: "well damn that worked",
		},
		{
			name: "Unknown mask replaced with marker",
			in:   "that was x********* weird",
			want: "that was [unknown] weird",
		},
		{
			name: "Asterisks never survive",
			in:   "z** q****",
			want: "[unknown] [unknown]",
		},
		{
			name: "Standalone asterisks untouched",
			in:   "rated ***",
			want: "rated ***",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecensor_CleanIdempotent(t *testing.T) {
	d := NewDecensor(nil)

	inputs := []string{
		"what the h*** was that",
		"that was x*** weird",
		"perfectly clean sentence",
	}

	for _, in := range inputs {
		once := d.Clean(in)
		twice := d.Clean(once)
		if once != twice {
			t.Errorf("Clean not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestDecensor_Overrides(t *testing.T) {
	d := NewDecensor(map[string]string{
		"g****": "gizmo",
		"H***":  "heck", // override keys are case-insensitive
	})

	if got := d.Clean("pass me the g****"); got != "pass me the gizmo" {
		t.Errorf("Clean() = %q, want gizmo substitution", got)
	}
	if got := d.Clean("oh h***"); got != "oh heck" {
		t.Errorf("Clean() = %q, want overridden heck", got)
	}
}

func TestLoadDecensorDict(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dict.toml")

	content := "[words]\n\"w*****\" = \"widget\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	words, err := LoadDecensorDict(path)
	if err != nil {
		t.Fatalf("LoadDecensorDict() error = %v", err)
	}
	if words["w*****"] != "widget" {
		t.Errorf("words = %v, want w***** -> widget", words)
	}

	d := NewDecensor(words)
	if got := d.Clean("install the w*****"); got != "install the widget" {
		t.Errorf("Clean() = %q", got)
	}
}

func TestLoadDecensorDict_Missing(t *testing.T) {
	if _, err := LoadDecensorDict("/nonexistent/dict.toml"); err == nil {
		t.Error("LoadDecensorDict() for missing file should fail")
	}
}
