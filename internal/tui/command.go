package tui

import "strings"

// Command represents a parsed command.
type Command struct {
	Name string
	Args []string
}

// ParseCommand parses a command string, with or without the leading ':'.
func ParseCommand(input string) Command {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(input), ":"))
	if len(fields) == 0 {
		return Command{}
	}
	return Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}
}

// Arg returns the i-th argument, or "".
func (c Command) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}
