package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"gechoice/internal/domain"
)

// CatalogRepository loads question catalogs (from cache/backing store).
type CatalogRepository interface {
	GetCatalog(ctx context.Context, catalogID string) (domain.Catalog, error)
}

// LoadSession fetches the catalog once and builds the single live session
// for this process. The session is the only shared game state: it is
// constructed here and passed by handle to every request handler, never
// reached through globals.
func LoadSession(ctx context.Context, catalogs CatalogRepository, catalogID string, clock clockwork.Clock) (*Session, error) {
	catalog, err := catalogs.GetCatalog(ctx, catalogID)
	if err != nil {
		return nil, err
	}
	return NewSessionWithClock(uuid.NewString(), catalog, clock), nil
}
