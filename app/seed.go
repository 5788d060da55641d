package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gravyprompts/discovery/config"
	"github.com/gravyprompts/discovery/templates"
)

// SeedOwner owns seed templates that do not name an owner.
const SeedOwner = "system"

// LoadSeed reads every seed source and consolidates the records together, so
// a title repeated across files still yields one template. Seed records are
// curated: records without a visibility are public and public records are
// approved. Creation times descend from now in consolidated order, which
// keeps that order on the public index.
func LoadSeed(now time.Time, sources ...config.SeedSource) ([]templates.Template, templates.Report, error) {
	var records []templates.Template
	for _, src := range sources {
		batch, err := readSeed(src)
		if err != nil {
			return nil, templates.Report{}, err
		}
		records = append(records, batch...)
	}

	unique, report := templates.Consolidate(records)
	now = now.UTC().Truncate(time.Second)
	for i := range unique {
		t := &unique[i]
		if t.OwnerID == "" {
			t.OwnerID = SeedOwner
		}
		if t.Visibility == "" {
			t.Visibility = templates.VisibilityPublic
		}
		if t.ModerationStatus == "" {
			if t.Visibility == templates.VisibilityPublic {
				t.ModerationStatus = templates.ModerationApproved
			} else {
				t.ModerationStatus = templates.ModerationNotRequired
			}
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now.Add(-time.Duration(i) * time.Second)
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = t.CreatedAt
		}
	}
	return unique, report, nil
}

func readSeed(src config.SeedSource) ([]templates.Template, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("app: seed: %w", err)
	}
	defer f.Close()

	decode := templates.DecodeSeedJSON
	if strings.EqualFold(filepath.Ext(src.Path), ".csv") {
		decode = templates.DecodeSeedCSV
	}
	records, err := decode(f, src.Format)
	if err != nil {
		return nil, fmt.Errorf("app: seed %s: %w", src.Path, err)
	}
	return records, nil
}
