package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/sundayezeilo/shortlinks/internal/collection"
)

// Account is the owner of a set of liked links. Links are referenced by id
// only; the link rows are loaded separately when needed.
type Account struct {
	ID         uuid.UUID
	Name       string
	LikedLinks *collection.ChangeTracked[uuid.UUID]
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Like records that the account likes linkID. It reports false when the link
// was already liked.
func (a *Account) Like(linkID uuid.UUID) bool {
	if a.LikedLinks.Contains(linkID) {
		return false
	}
	a.LikedLinks.Add(linkID)
	return true
}

// Unlike drops linkID from the liked links. It reports false when the link
// was not liked.
func (a *Account) Unlike(linkID uuid.UUID) bool {
	if !a.LikedLinks.Contains(linkID) {
		return false
	}
	a.LikedLinks.Remove(linkID)
	return true
}
