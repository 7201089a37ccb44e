package dataprocessing

import (
	"log/slog"

	apperrors "sheetload/internal/errors"
	"sheetload/pkg/contracts/domain"
)

// AnchorDate returns the date of the first record. The first row defines
// the upload batch; there is no anchor for an empty dataset.
func AnchorDate(ds domain.Dataset) (domain.Date, error) {
	if len(ds) == 0 {
		return domain.Date{}, apperrors.NewEmptyDatasetError("dataset is empty, anchor date is undefined", nil)
	}
	return ds[0].Date, nil
}

// FilterByAnchor keeps the records dated on the anchor date, in their
// original order. Records from other batches are dropped silently. The
// value of a kept record is not inspected, so Missing and Invalid values
// reach the output.
func FilterByAnchor(ds domain.Dataset) (domain.Date, domain.FilteredDataset, error) {
	anchor, err := AnchorDate(ds)
	if err != nil {
		return domain.Date{}, nil, err
	}

	filtered := make(domain.FilteredDataset, 0, len(ds))
	for _, r := range ds {
		if r.Date == anchor {
			filtered = append(filtered, r)
		}
	}

	if dropped := len(ds) - len(filtered); dropped > 0 {
		slog.Debug("Dropped rows outside anchor date",
			slog.String("anchor_date", anchor.String()),
			slog.Int("dropped", dropped),
			slog.Int("kept", len(filtered)))
	}

	return anchor, filtered, nil
}
