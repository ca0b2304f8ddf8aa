package domain

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
)

// --- ERREURS DU DOMAINE ---
var (
	ErrPostNotFound     = fmt.Errorf("post %w", apperr.ErrNotFound)
	ErrMissingAuthor    = fmt.Errorf("%w: author is required", apperr.ErrValidation)
	ErrContentTooShort  = fmt.Errorf("%w: content is too short", apperr.ErrValidation)
	ErrContentTooLong   = fmt.Errorf("%w: content is too long", apperr.ErrValidation)
	ErrInvalidPageToken = fmt.Errorf("%w: invalid page token", apperr.ErrValidation)
)

// Bornes par défaut du contenu, en caractères, après nettoyage.
const (
	DefaultMinContent = 3
	DefaultMaxContent = 5000
)

// ContentPolicy borne la longueur d'un post.
type ContentPolicy struct {
	Min int
	Max int
}

func DefaultContentPolicy() ContentPolicy {
	return ContentPolicy{Min: DefaultMinContent, Max: DefaultMaxContent}
}

// strict retire tout le HTML : un post est du texte brut.
var strict = bluemonday.StrictPolicy()

// --- ENTITÉ ---

type Post struct {
	ID        string
	UserID    string
	Content   string
	MediaIDs  []string
	CreatedAt time.Time
}

// NewPost est le seul moyen de créer un post valide (ID, nettoyage, bornes).
func NewPost(userID, content string, mediaIDs []string, policy ContentPolicy) (*Post, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingAuthor
	}

	// Sanitize échappe les entités : on stocke le texte tel que l'utilisateur le voit.
	clean := strings.TrimSpace(html.UnescapeString(strict.Sanitize(content)))
	n := utf8.RuneCountInString(clean)
	if n < policy.Min {
		return nil, ErrContentTooShort
	}
	if policy.Max > 0 && n > policy.Max {
		return nil, ErrContentTooLong
	}

	return &Post{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   clean,
		MediaIDs:  normalizeMediaIDs(mediaIDs),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// OwnedBy : seul l'auteur peut supprimer.
func (p *Post) OwnedBy(userID string) bool {
	return p.UserID == userID
}

// normalizeMediaIDs enlève les vides et les doublons en gardant l'ordre.
func normalizeMediaIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Page est une page de la liste globale, plus récents d'abord.
type Page struct {
	Posts       []*Post
	CurrentPage int
	TotalPages  int
	TotalPosts  int
}

// NewPage calcule le nombre de pages pour total posts à limit par page.
func NewPage(posts []*Post, page, limit, total int) Page {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	if posts == nil {
		posts = []*Post{}
	}
	return Page{Posts: posts, CurrentPage: page, TotalPages: pages, TotalPosts: total}
}
