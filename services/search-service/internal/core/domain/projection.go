package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/jupiterclapton/cenackle/pkg/apperr"
)

var (
	ErrEmptyQuery        = fmt.Errorf("%w: query is required", apperr.ErrValidation)
	ErrInvalidProjection = fmt.Errorf("%w: postId is required", apperr.ErrValidation)
)

// Projection est la copie d'un post dans l'index de recherche.
// Elle n'est modifiée qu'en réaction aux événements du bus.
type Projection struct {
	PostID    string
	UserID    string
	Content   string
	CreatedAt time.Time
	IndexedAt time.Time
}

func (p Projection) Validate() error {
	if strings.TrimSpace(p.PostID) == "" {
		return ErrInvalidProjection
	}
	return nil
}

// Hit : résultat de recherche trié par pertinence.
type Hit struct {
	Projection
	Score float64
}

// SearchRequest encapsule les critères de recherche
type SearchRequest struct {
	Query string
	Limit int
}
