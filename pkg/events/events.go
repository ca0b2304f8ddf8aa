// Package events décrit le contrat des événements de cycle de vie échangés sur le bus.
// Les tags JSON restent en camelCase pour rester compatibles avec les producteurs existants.
package events

import "time"

// Exchange est l'unique topic exchange partagé par tous les services.
const Exchange = "social_events"

const (
	RoutingKeyPostCreated = "post.created"
	RoutingKeyPostDeleted = "post.deleted"
)

const (
	TypePostCreated = "PostCreated"
	TypePostDeleted = "PostDeleted"
)

// Version du schéma des payloads ci-dessous.
const Version = 1

type PostCreated struct {
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func (PostCreated) EventType() string { return TypePostCreated }
func (PostCreated) EventVersion() int { return Version }
func (PostCreated) RoutingKey() string { return RoutingKeyPostCreated }

type PostDeleted struct {
	PostID   string   `json:"postId"`
	UserID   string   `json:"userId"`
	MediaIDs []string `json:"mediaIds"`
}

func (PostDeleted) EventType() string { return TypePostDeleted }
func (PostDeleted) EventVersion() int { return Version }
func (PostDeleted) RoutingKey() string { return RoutingKeyPostDeleted }
