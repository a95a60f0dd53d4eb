// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package testcenter

import (
	"fmt"
	"strings"
)

// tclSpecial are the characters that make a word need quoting
const tclSpecial = " \t\n\r{}[]$\"\\;"

// tclQuote quotes s as a single Tcl word
func tclQuote(s string) string {
	if s == "" {
		return "{}"
	}
	if !strings.ContainsAny(s, tclSpecial) {
		return s
	}
	if !strings.Contains(s, `\`) && bracesBalanced(s) {
		return "{" + s + "}"
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if strings.ContainsRune(tclSpecial, r) {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func bracesBalanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// tclList encodes tokens as a Tcl list
func tclList(tokens []string) string {
	words := make([]string, 0, len(tokens))
	for _, t := range tokens {
		words = append(words, tclQuote(t))
	}
	return strings.Join(words, " ")
}

// parseTclList splits a Tcl list into its elements.
//
// Braced elements are taken literally; quoted and bare elements get
// backslash substitution. Command and variable substitution never happen
// in list parsing.
func parseTclList(s string) ([]string, error) {
	var out []string
	i := 0
	n := len(s)
	for {
		for i < n && isTclSpace(s[i]) {
			i++
		}
		if i >= n {
			return out, nil
		}

		switch s[i] {
		case '{':
			depth := 1
			start := i + 1
			j := start
			for ; j < n && depth > 0; j++ {
				switch s[j] {
				case '\\':
					j++
				case '{':
					depth++
				case '}':
					depth--
				}
			}
			if depth != 0 {
				return nil, fmt.Errorf("unmatched open brace in list")
			}
			out = append(out, s[start:j-1])
			i = j
		case '"':
			var b strings.Builder
			j := i + 1
			for ; j < n && s[j] != '"'; j++ {
				if s[j] == '\\' && j+1 < n {
					j++
					b.WriteString(tclEscape(s[j]))
					continue
				}
				b.WriteByte(s[j])
			}
			if j >= n {
				return nil, fmt.Errorf("unmatched open quote in list")
			}
			out = append(out, b.String())
			i = j + 1
		default:
			var b strings.Builder
			j := i
			for ; j < n && !isTclSpace(s[j]); j++ {
				if s[j] == '\\' && j+1 < n {
					j++
					b.WriteString(tclEscape(s[j]))
					continue
				}
				b.WriteByte(s[j])
			}
			out = append(out, b.String())
			i = j
			continue
		}

		if i < n && !isTclSpace(s[i]) {
			return nil, fmt.Errorf("list element in braces or quotes followed by %q instead of space", s[i])
		}
	}
}

func isTclSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func tclEscape(c byte) string {
	switch c {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	default:
		return string(c)
	}
}

// parseTclPairs parses a "-key value -key value" list into a map with the
// leading dash stripped from every key
func parseTclPairs(s string) (map[string]string, error) {
	items, err := parseTclList(s)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(items)/2)
	for i := 0; i+1 < len(items); i += 2 {
		out[strings.TrimPrefix(items[i], "-")] = items[i+1]
	}
	return out, nil
}
