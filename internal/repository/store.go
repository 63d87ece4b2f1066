package repository

import "database/sql"

// Store aggregates every typed repository over a single connection pool,
// mirroring how sendry's worker and server wire up their repository set.
type Store struct {
	Subscribers *SubscriberRepository
	Lists       *ListRepository
	Memberships *MembershipRepository
	Keywords    *KeywordRepository
	Messages    *MessageRepository
	Broadcasts  *BroadcastRepository
	Links       *LinkRepository
	Config      *ConfigRepository
}

func New(db *sql.DB) *Store {
	return &Store{
		Subscribers: NewSubscriberRepository(db),
		Lists:       NewListRepository(db),
		Memberships: NewMembershipRepository(db),
		Keywords:    NewKeywordRepository(db),
		Messages:    NewMessageRepository(db),
		Broadcasts:  NewBroadcastRepository(db),
		Links:       NewLinkRepository(db),
		Config:      NewConfigRepository(db),
	}
}
