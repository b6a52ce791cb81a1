package models

import "time"

// FriendshipState, arkadaşlık isteğinin durumunu temsil eder.
type FriendshipState string

const (
	FriendshipPending  FriendshipState = "pending"
	FriendshipAccepted FriendshipState = "accepted"
	FriendshipRejected FriendshipState = "rejected"
)

// Friendship, yönlü bir arkadaşlık kenarını temsil eder.
//
// Pending invariant: aynı çift için (her iki yönde) tek bir pending
// kayıt olabilir — repo her iki yönü de kontrol eder.
type Friendship struct {
	ID          string          `json:"id"`
	RequesterID string          `json:"requester_id"`
	TargetID    string          `json:"target_id"`
	State       FriendshipState `json:"state"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Block, yönlü bir engelleme kenarını temsil eder.
//
// Engel şunları kapatır (her iki yönde): DM oluşturma, DM'e mesaj gönderme,
// arkadaşlık isteği, call invite teslimi.
type Block struct {
	BlockerID string    `json:"blocker_id"`
	BlockedID string    `json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FriendEntry, friend listesi görünümü: karşı taraf + durum + yön.
type FriendEntry struct {
	Friendship Friendship `json:"friendship"`
	User       PublicUser `json:"user"`
	Incoming   bool       `json:"incoming"` // true → isteği karşı taraf gönderdi
}
