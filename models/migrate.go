package models

import (
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates or updates every table the workflow uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Group{},
		&Submission{},
		&SubmissionFile{},
		&SubmissionCheck{},
		&SubmissionEvent{},
		&Document{},
		&DocumentHistory{},
		&DocumentState{},
		&DocTag{},
		&RelatedDocument{},
		&State{},
		&DocEvent{},
		&Task{},
	)
}

// SeedStates inserts the state graphs for the draft lifecycle and the IESG
// review dimension, including the permitted next-state edges. Safe to call
// on a database that is already seeded.
func SeedStates(db *gorm.DB) error {
	if err := seedStateType(db, StateTypeDraft, draftSeeds); err != nil {
		return err
	}
	return seedStateType(db, StateTypeIESG, iesgSeeds)
}

func seedStateType(db *gorm.DB, stateType string, seeds []stateSeed) error {
	var count int64
	if err := db.Model(&State{}).Where("type = ?", stateType).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	byslug := make(map[string]*State, len(seeds))
	for _, seed := range seeds {
		st := &State{
			Type:  stateType,
			Slug:  seed.slug,
			Name:  seed.name,
			Order: seed.order,
		}
		if err := db.Create(st).Error; err != nil {
			return fmt.Errorf("seed state %s/%s: %w", stateType, seed.slug, err)
		}
		byslug[seed.slug] = st
	}

	for _, seed := range seeds {
		if len(seed.next) == 0 {
			continue
		}
		from := byslug[seed.slug]
		next := make([]State, 0, len(seed.next))
		for _, slug := range seed.next {
			to, ok := byslug[slug]
			if !ok {
				return fmt.Errorf("seed state %s/%s: unknown next state %q", stateType, seed.slug, slug)
			}
			next = append(next, *to)
		}
		if err := db.Model(from).Association("NextStates").Append(&next); err != nil {
			return fmt.Errorf("seed edges for %s/%s: %w", stateType, seed.slug, err)
		}
	}

	return nil
}
