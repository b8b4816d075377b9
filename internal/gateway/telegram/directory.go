package telegram

import (
	"strings"
	"sync"

	tele "gopkg.in/telebot.v3"
)

// Directory remembers users the bot has seen so /bingo @username can be
// resolved. The Bot API has no username lookup.
type Directory struct {
	mu     sync.RWMutex
	byName map[string]*tele.User
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{byName: make(map[string]*tele.User)}
}

// Remember records u under its username. Users without one are skipped.
// It reports whether the username was new or now points at another user.
func (d *Directory) Remember(u *tele.User) bool {
	if u == nil || u.Username == "" || u.IsBot {
		return false
	}
	name := strings.ToLower(u.Username)
	cp := *u

	d.mu.Lock()
	defer d.mu.Unlock()
	prev, ok := d.byName[name]
	d.byName[name] = &cp
	return !ok || prev.ID != u.ID
}

// Lookup finds a user by username, with or without the leading @.
func (d *Directory) Lookup(username string) (*tele.User, bool) {
	name := strings.ToLower(strings.TrimPrefix(username, "@"))
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byName[name]
	return u, ok
}

// Len returns the number of known users.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byName)
}
