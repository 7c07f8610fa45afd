package iterm

import "strings"

// ControlCode maps a control-character name to its raw code:
//
//	]                → 29 (group separator, exits telnet prompts)
//	ESC / Escape     → 27
//	a letter A-Z/a-z → upper(letter) - 64 (Ctrl-C = 3, Ctrl-Z = 26, ...)
//
// Anything else is rejected with InvalidControlCharacterError.
func ControlCode(letter string) (byte, error) {
	if letter == "]" {
		return 29, nil
	}
	if strings.EqualFold(letter, "escape") || strings.EqualFold(letter, "esc") {
		return 27, nil
	}
	if len(letter) == 1 {
		c := letter[0]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c >= 'A' && c <= 'Z' {
			return c - 64, nil
		}
	}
	return 0, &InvalidControlCharacterError{Input: letter}
}
