// Package command parses raw chat text into bot commands.
//
// A command message starts with the prefix character immediately at the
// first position of the input. The command token is the first token after
// the prefix, optionally separated from it by whitespace ("?ping" and
// "? ping" both name "ping"). Tokens starting with "--" are arguments.
package command

import (
	"strings"
	"unicode"
)

// Prefix marks a message as a command.
const Prefix = '?'

// ArgumentPrefix marks a token as an argument flag.
const ArgumentPrefix = "--"

// Parsed holds everything extracted from a single command message.
type Parsed struct {
	Command   string
	Arguments []string
	UserText  string
}

// ValidateCommandMessage reports whether raw is a command message.
// The first character is not trimmed: " ?ping" is not a command.
func ValidateCommandMessage(raw string) bool {
	return raw != "" && raw[0] == Prefix
}

// ExtractCommand returns the command token of raw.
// Returns false when raw is not a command message or no token follows the prefix.
func ExtractCommand(raw string) (string, bool) {
	_, cmd, ok := locateCommand(raw)
	return cmd, ok
}

// ExtractArguments returns every whitespace-delimited token starting with "--",
// in input order. Duplicates are kept.
func ExtractArguments(raw string) []string {
	var args []string
	for _, token := range strings.Fields(raw) {
		if strings.HasPrefix(token, ArgumentPrefix) {
			args = append(args, token)
		}
	}
	return args
}

// ExtractUserText returns raw with the leading "?<command>" removed, trimmed.
// For input that is not a command message the trimmed input is returned.
func ExtractUserText(raw string) string {
	end, _, ok := locateCommand(raw)
	if !ok {
		return strings.TrimSpace(raw)
	}
	return strings.TrimSpace(raw[end:])
}

// Parse extracts command, arguments and user text in one pass.
func Parse(raw string) (Parsed, bool) {
	end, cmd, ok := locateCommand(raw)
	if !ok {
		return Parsed{}, false
	}
	return Parsed{
		Command:   cmd,
		Arguments: ExtractArguments(raw),
		UserText:  strings.TrimSpace(raw[end:]),
	}, true
}

// locateCommand returns the command token and the byte offset just past it.
func locateCommand(raw string) (int, string, bool) {
	if !ValidateCommandMessage(raw) {
		return 0, "", false
	}

	rest := raw[1:]
	start := strings.IndexFunc(rest, func(r rune) bool { return !unicode.IsSpace(r) })
	if start < 0 {
		return 0, "", false
	}

	token := rest[start:]
	if n := strings.IndexFunc(token, unicode.IsSpace); n >= 0 {
		token = token[:n]
	}

	return 1 + start + len(token), token, true
}
