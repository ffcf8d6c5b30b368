package garden

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/moonlit-garden/moonlit/internal/app/moonlight"
	"github.com/moonlit-garden/moonlit/internal/domain"
	"github.com/moonlit-garden/moonlit/internal/infra/metrics"
)

// Discovery is the outcome of one paid artifact draw.
type Discovery struct {
	Definition domain.ArtifactDefinition `json:"artifact"`
	Artifact   domain.UserArtifact       `json:"user_artifact"`
	Duplicate  bool                      `json:"duplicate"`
	Cost       int64                     `json:"cost"`
	Phase      domain.MoonPhase          `json:"moon_phase"`
	Balance    int64                     `json:"remaining_moonlight"`
}

// OwnedArtifact is a user artifact with its catalog entry.
type OwnedArtifact struct {
	domain.UserArtifact
	Definition domain.ArtifactDefinition `json:"artifact"`
}

// Discover charges the discovery cost and draws an artifact for the user.
// A duplicate draw reuses the existing ownership record.
func (s *Service) Discover(ctx context.Context, userID string) (Discovery, error) {
	var out Discovery
	var entries []domain.LedgerEntry
	err := s.update(ctx, userID, func(tx domain.GardenTx) error {
		now := s.clock.Now()
		u, err := s.user(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		catalog, err := tx.ListArtifactDefinitions(ctx)
		if err != nil {
			return err
		}
		owned, err := tx.OwnedDefinitionIDs(ctx, userID)
		if err != nil {
			return err
		}
		acc, err := account(ctx, tx, userID, now)
		if err != nil {
			return err
		}

		moon := s.moon.ForInstant(ctx, now, u.Timezone)
		ledger := moonlight.Open(acc, now)
		draw, err := s.discovery.Discover(catalog, owned, moon.Phase, ledger)
		if err != nil {
			return err
		}

		ua, err := tx.GetUserArtifactByDefinition(ctx, userID, draw.Definition.ID)
		if err != nil {
			return err
		}
		if ua == nil {
			ua = &domain.UserArtifact{
				ID:           uuid.NewString(),
				UserID:       userID,
				DefinitionID: draw.Definition.ID,
				AcquiredAt:   now,
			}
			if err := tx.SaveUserArtifact(ctx, *ua); err != nil {
				return err
			}
		}

		out = Discovery{
			Definition: draw.Definition,
			Artifact:   *ua,
			Duplicate:  draw.Duplicate,
			Cost:       draw.Cost,
			Phase:      draw.Phase,
			Balance:    ledger.Balance(),
		}
		entries = ledger.Entries()
		return saveLedger(ctx, tx, ledger)
	})
	if err != nil {
		return Discovery{}, err
	}

	metrics.Discoveries.WithLabelValues(string(out.Definition.Rarity), strconv.FormatBool(out.Duplicate)).Inc()
	observeLedger(entries)
	s.log.Info("artifact discovered",
		"user", userID, "artifact", out.Definition.Code, "rarity", out.Definition.Rarity,
		"duplicate", out.Duplicate, "phase", out.Phase)
	return out, nil
}

// ListArtifacts returns what the user owns, in acquisition order.
func (s *Service) ListArtifacts(ctx context.Context, userID string) ([]OwnedArtifact, error) {
	var out []OwnedArtifact
	err := s.store.View(ctx, func(tx domain.GardenTx) error {
		defs, err := tx.ListArtifactDefinitions(ctx)
		if err != nil {
			return err
		}
		byID := make(map[string]domain.ArtifactDefinition, len(defs))
		for _, d := range defs {
			byID[d.ID] = d
		}
		owned, err := tx.ListUserArtifacts(ctx, userID)
		if err != nil {
			return err
		}
		out = make([]OwnedArtifact, 0, len(owned))
		for _, ua := range owned {
			out = append(out, OwnedArtifact{UserArtifact: ua, Definition: byID[ua.DefinitionID]})
		}
		return nil
	})
	return out, err
}

// Catalog returns every artifact definition in draw order.
func (s *Service) Catalog(ctx context.Context) ([]domain.ArtifactDefinition, error) {
	var out []domain.ArtifactDefinition
	err := s.store.View(ctx, func(tx domain.GardenTx) error {
		var err error
		out, err = tx.ListArtifactDefinitions(ctx)
		return err
	})
	return out, err
}

// SeedCatalog upserts definitions by code and returns how many were written.
func (s *Service) SeedCatalog(ctx context.Context, defs []domain.ArtifactDefinition) (int, error) {
	err := s.store.Update(ctx, func(tx domain.GardenTx) error {
		for _, d := range defs {
			if err := tx.UpsertArtifactDefinition(ctx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("catalog seeded", "artifacts", len(defs))
	return len(defs), nil
}

// ArtifactFlags is a partial update of a user artifact's display flags.
type ArtifactFlags struct {
	Favorite  *bool `json:"is_favorite,omitempty"`
	Displayed *bool `json:"is_displayed,omitempty"`
}

// SetArtifactFlags updates the favorite and displayed flags of an owned
// artifact.
func (s *Service) SetArtifactFlags(ctx context.Context, userID, artifactID string, f ArtifactFlags) (domain.UserArtifact, error) {
	var out domain.UserArtifact
	err := s.update(ctx, userID, func(tx domain.GardenTx) error {
		ua, err := tx.GetUserArtifact(ctx, artifactID)
		if err != nil {
			return err
		}
		if ua == nil {
			return fmt.Errorf("artifact %s: %w", artifactID, domain.ErrArtifactNotFound)
		}
		if ua.UserID != userID {
			return fmt.Errorf("artifact %s: %w", artifactID, domain.ErrNotOwnedByUser)
		}
		if f.Favorite != nil {
			ua.Favorite = *f.Favorite
		}
		if f.Displayed != nil {
			ua.Displayed = *f.Displayed
		}
		out = *ua
		return tx.SaveUserArtifact(ctx, *ua)
	})
	return out, err
}
