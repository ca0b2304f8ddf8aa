package ports

import (
	"context"
	"time"

	"github.com/jupiterclapton/cenackle/services/search-service/internal/core/domain"
)

// --- DRIVEN (Ce dont le service a besoin) ---

type ProjectionRepository interface {
	// Insert renvoie false si postId est déjà pris, par une projection ou par une pierre tombale.
	Insert(ctx context.Context, p domain.Projection) (bool, error)

	// MarkDeleted remplace la projection par une pierre tombale (créée si absente) pour
	// qu'un PostCreated redélivré plus tard ne la ressuscite pas. Renvoie true si une
	// projection vivante a été retirée.
	MarkDeleted(ctx context.Context, postID string, at time.Time) (bool, error)

	// Search : recherche plein texte, les plus pertinents d'abord
	Search(ctx context.Context, query string, limit int) ([]domain.Hit, error)
}
