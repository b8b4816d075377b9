package handler

import "strings"

// autoWords opt the auto player into a game.
var autoWords = map[string]bool{"auto": true, "bot": true}

// ParseStartArgs splits start arguments into invited usernames (without the
// leading @, deduplicated case-insensitively) and the auto flag.
func ParseStartArgs(args []string) (usernames []string, auto bool) {
	seen := make(map[string]bool)
	for _, arg := range args {
		name := strings.TrimPrefix(strings.TrimSpace(arg), "@")
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if autoWords[key] {
			auto = true
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		usernames = append(usernames, name)
	}
	return usernames, auto
}
