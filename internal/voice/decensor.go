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
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
)

// UnknownWordMarker replaces masked tokens with no dictionary entry so the
// mask characters never reach the user.
const UnknownWordMarker = "[unknown]"

var (
	// maskedToken matches any token the platform recognizer may have
	// censored: letters and at least one asterisk.
	maskedToken = regexp.MustCompile(`[A-Za-z*]*[A-Za-z]\*[A-Za-z*]*|[A-Za-z*]*\*[A-Za-z][A-Za-z*]*`)

	// strayMask is the catch-all form with no dictionary entry: a single
	// letter followed only by asterisks.
	strayMask = regexp.MustCompile(`^[A-Za-z]\*+$`)
)

// defaultMaskDict maps masked forms to the words the platform recognizer
// censored. Keys are lowercase; lookup is case-insensitive on the first
// letter and the replacement preserves a leading capital.
var defaultMaskDict = map[string]string{
	"f***":    "fuck",
	"f******": "fucking",
	"s***":    "shit",
	"b****":   "bitch",
	"a**":     "ass",
	"a******": "asshole",
	"d***":    "dick",
	"h***":    "hell",
	"c***":    "crap",
	"b******": "bastard",
	"d*mn":    "damn",
	"g*ddamn": "goddamn",
}

// Decensor reconstructs words the platform recognizer masked. It holds no
// hidden state: Clean is a pure function of its input and the dictionary.
type Decensor struct {
	dict map[string]string
}

// NewDecensor builds a Decensor from the built-in dictionary merged with
// the given overrides, if any.
func NewDecensor(overrides map[string]string) *Decensor {
	dict := make(map[string]string, len(defaultMaskDict)+len(overrides))
	for k, v := range defaultMaskDict {
		dict[strings.ToLower(k)] = v
	}
	for k, v := range overrides {
		dict[strings.ToLower(k)] = v
	}
	return &Decensor{dict: dict}
}

// decensorDictFile is the TOML shape of a dictionary override file.
type decensorDictFile struct {
	Words map[string]string `toml:"words"`
}

// LoadDecensorDict reads masked→original overrides from a TOML file.
func LoadDecensorDict(path string) (map[string]string, error) {
	var file decensorDictFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("failed to load decensor dictionary %s: %w", path, err)
	}
	return file.Words, nil
}

// Clean reconstructs masked words via dictionary lookup, then strips any
// remaining single-letter-plus-asterisks token, replacing it with
// UnknownWordMarker. Text with no masked tokens passes through unchanged,
// so Clean is idempotent on its own output.
func (d *Decensor) Clean(text string) string {
	if !strings.Contains(text, "*") {
		return text
	}

	return maskedToken.ReplaceAllStringFunc(text, func(token string) string {
		key := strings.ToLower(token)
		if word, ok := d.dict[key]; ok {
			if unicode.IsUpper(rune(token[0])) {
				return strings.ToUpper(word[:1]) + word[1:]
			}
			return word
		}
		if strayMask.MatchString(token) {
			return UnknownWordMarker
		}
		return token
	})
}
