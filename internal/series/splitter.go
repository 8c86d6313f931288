package series

import (
	"fmt"

	"github.com/openils/importer/internal/entities"
)

// MultivolumeSplit is the result of exploding one multi-volume supplier
// record: a multipart parent series plus one document per declared volume.
// Children line up with Volumes index-wise so the caller can attach each
// with its volume number.
type MultivolumeSplit struct {
	Parent   entities.SeriesMetadata
	Volumes  []entities.VolumeDescriptor
	Children []entities.DocumentMetadata
}

// SplitMultivolume builds the parent series and per-volume child documents
// from a record flagged `_migration.multivolume_record`. Shared fields
// (title, alternative titles, identifiers, publication year) move to the
// parent; each child clones the record and substitutes title, identifiers,
// urls and publication year from the per-volume arrays, matched by volume
// number. A per-volume array naming a volume outside `volumes` means the
// supplier record is inconsistent and has to be imported by hand.
func SplitMultivolume(doc *entities.DocumentMetadata, provider string) (*MultivolumeSplit, error) {
	migration := doc.Migration
	if migration == nil || !migration.MultivolumeRecord {
		return nil, nil
	}
	if len(migration.Volumes) == 0 {
		return nil, &entities.ManualImportRequired{FieldError: entities.FieldError{
			Reason: "multivolume record without volume descriptors",
		}}
	}

	declared := make(map[string]bool, len(migration.Volumes))
	for _, v := range migration.Volumes {
		declared[v.Volume] = true
	}
	if err := checkVolumeBounds(len(migration.Volumes), len(migration.VolumesIdentifiers), "identifiers"); err != nil {
		return nil, err
	}
	if err := checkVolumeBounds(len(migration.Volumes), len(migration.VolumesURLs), "urls"); err != nil {
		return nil, err
	}
	if err := checkVolumeBounds(len(migration.Volumes), len(migration.VolumesItems), "items"); err != nil {
		return nil, err
	}

	identifiersByVolume := make(map[string][]entities.Identifier)
	for _, entry := range migration.VolumesIdentifiers {
		if !declared[entry.Volume] {
			return nil, undeclaredVolume(entry.Volume)
		}
		identifiersByVolume[entry.Volume] = entry.Identifiers
	}
	urlsByVolume := make(map[string][]entities.URL)
	for _, entry := range migration.VolumesURLs {
		if !declared[entry.Volume] {
			return nil, undeclaredVolume(entry.Volume)
		}
		urlsByVolume[entry.Volume] = entry.URLs
	}
	yearByVolume := make(map[string]string)
	for _, entry := range migration.VolumesItems {
		if !declared[entry.Volume] {
			return nil, undeclaredVolume(entry.Volume)
		}
		yearByVolume[entry.Volume] = entry.PublicationYear
	}

	parent := entities.SeriesMetadata{
		Title:             doc.Title,
		ModeOfIssuance:    entities.ModeOfIssuanceMultipart,
		Identifiers:       doc.Identifiers,
		AlternativeTitles: doc.AlternativeTitles,
		PublicationYear:   doc.PublicationYear,
		LegacyRecID:       doc.LegacyRecID,
		CreatedBy: &entities.CreatedBy{
			Type:  entities.CreatedByTypeImport,
			Value: provider,
		},
	}
	if doc.Imprint != nil {
		parent.Publisher = doc.Imprint.Publisher
	}

	children := make([]entities.DocumentMetadata, 0, len(migration.Volumes))
	for _, volume := range migration.Volumes {
		child := *doc

		// Shared fields live on the parent only.
		child.AlternativeTitles = nil
		child.LegacyRecID = ""
		child.Migration = nil
		child.Serial = nil

		if volume.Title != "" {
			child.Title = volume.Title
		}
		child.Identifiers = identifiersByVolume[volume.Volume]
		if year, ok := yearByVolume[volume.Volume]; ok && year != "" {
			child.PublicationYear = year
		}
		if urls, ok := urlsByVolume[volume.Volume]; ok {
			if doc.EItem != nil {
				candidate := *doc.EItem
				candidate.URLs = urls
				child.EItem = &candidate
			} else {
				child.EItem = &entities.EItemCandidate{URLs: urls}
			}
		}

		children = append(children, child)
	}

	return &MultivolumeSplit{
		Parent:   parent,
		Volumes:  migration.Volumes,
		Children: children,
	}, nil
}

func checkVolumeBounds(volumes, entries int, what string) error {
	if entries > volumes {
		return &entities.ManualImportRequired{FieldError: entities.FieldError{
			Reason: fmt.Sprintf("more volume %s entries than declared volumes", what),
		}}
	}
	return nil
}

func undeclaredVolume(volume string) error {
	return &entities.ManualImportRequired{FieldError: entities.FieldError{
		Reason: fmt.Sprintf("volume %q carries extra fields but is not declared", volume),
	}}
}
