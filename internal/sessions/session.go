package sessions

import "time"

// Session maps an opaque token to a resolved login. RepoToken is the delegated
// credential captured at login, used to fetch repository content on the user's
// behalf during ingestion.
type Session struct {
	Token     string    `json:"token" bson:"token"`
	Login     string    `json:"login" bson:"login"`
	RepoToken string    `json:"repoToken,omitempty" bson:"repoToken,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt" bson:"expiresAt"`
}
