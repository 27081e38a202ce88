package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/HomerJax/SKV-Strich-App/app/roster"
	"github.com/HomerJax/SKV-Strich-App/app/store"
)

// Import is a command to load a roster from a JSON file.
type Import struct {
	CommonOpts
	StoreLocation string `long:"loc"  env:"LOCATION" description:"Store location" default:"skv.db"`
	File          string `long:"file" short:"f" required:"true" description:"JSON file with the players"`
}

// Execute runs the command.
func (i Import) Execute([]string) error {
	s, err := store.New(i.StoreLocation)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer s.Close()

	f, err := os.Open(i.File)
	if err != nil {
		return fmt.Errorf("open roster file: %w", err)
	}
	defer f.Close()

	stats, err := ImportRoster(context.Background(), store.NewService(s), f)
	if err != nil {
		return err
	}

	log.Printf("[INFO] roster imported: %d created, %d updated, %d skipped", stats.Created, stats.Updated, stats.Skipped)
	return nil
}

// ImportedPlayer is a single entry of a roster file. Missing fields keep
// their stored value, or the default for a new player.
type ImportedPlayer struct {
	Name     string  `json:"name"`
	Position *string `json:"position"`
	AgeGroup *string `json:"age_group"`
	Strength *int    `json:"strength"`
	Active   *bool   `json:"active"`
}

// ImportStats counts what happened to the entries of a roster file.
type ImportStats struct {
	Created int
	Updated int
	Skipped int
}

// ImportRoster reads a JSON array of players and creates or updates them
// by name. Broken entries are logged and skipped.
func ImportRoster(ctx context.Context, svc *store.Service, r io.Reader) (ImportStats, error) {
	var entries []ImportedPlayer
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return ImportStats{}, fmt.Errorf("parse roster: %w", err)
	}

	var stats ImportStats
	for idx, entry := range entries {
		created, err := importPlayer(ctx, svc, entry)
		switch {
		case err != nil:
			log.Printf("[WARN] skip player #%d %q: %v", idx, entry.Name, err)
			stats.Skipped++
		case created:
			stats.Created++
		default:
			stats.Updated++
		}
	}
	return stats, nil
}

func importPlayer(ctx context.Context, svc *store.Service, entry ImportedPlayer) (created bool, err error) {
	patch, err := entry.patch()
	if err != nil {
		return false, err
	}

	pl, err := svc.Player(ctx, entry.Name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if pl, err = svc.AddPlayer(ctx, entry.Name, roster.PositionUnset, roster.AgeUnset); err != nil {
			return false, err
		}
		created = true
	case err != nil:
		return false, err
	}

	if _, err = svc.UpdatePlayer(ctx, pl.ID, patch); err != nil {
		return false, err
	}
	return created, nil
}

func (p ImportedPlayer) patch() (store.PlayerPatch, error) {
	patch := store.PlayerPatch{Strength: p.Strength, Active: p.Active}

	// checked here as well, a new player must not be created half way
	if p.Strength != nil && (*p.Strength < roster.MinStrength || *p.Strength > roster.MaxStrength) {
		return store.PlayerPatch{}, fmt.Errorf("%w: strength %d", store.ErrInvalidInput, *p.Strength)
	}

	if p.Position != nil {
		pos, err := roster.ParsePosition(*p.Position)
		if err != nil {
			return store.PlayerPatch{}, err
		}
		patch.Position = &pos
	}

	if p.AgeGroup != nil {
		age, err := roster.ParseAgeGroup(*p.AgeGroup)
		if err != nil {
			return store.PlayerPatch{}, err
		}
		patch.Age = &age
	}

	return patch, nil
}
