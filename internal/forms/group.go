package forms

import (
	"context"
	"fmt"
)

// ProductLookup reports which of the given data product ids exist.
type ProductLookup interface {
	ExistingIDs(ctx context.Context, ids []uint) ([]uint, error)
}

// GroupLookup reports whether a data product group exists.
type GroupLookup interface {
	Exists(ctx context.Context, id uint) (bool, error)
}

// AddProductToGroupForm selects data products to add to one group.
type AddProductToGroupForm struct {
	Products []uint `form:"products" json:"products" binding:"required,min=1"`
	Group    uint   `form:"group" json:"group" binding:"required"`
}

// Validate rejects unknown products and groups. Lookup failures are returned
// as plain errors, not validation errors.
func (f *AddProductToGroupForm) Validate(ctx context.Context, products ProductLookup, groups GroupLookup) error {
	ve := NewValidationError()

	f.Products = dedupe(f.Products)
	if len(f.Products) == 0 {
		ve.Add("products", "This field is required.")
	} else {
		found, err := products.ExistingIDs(ctx, f.Products)
		if err != nil {
			return fmt.Errorf("failed to look up data products: %w", err)
		}
		known := make(map[uint]bool, len(found))
		for _, id := range found {
			known[id] = true
		}
		for _, id := range f.Products {
			if !known[id] {
				ve.Add("products", fmt.Sprintf("Select a valid choice. %d is not one of the available choices.", id))
			}
		}
	}

	if f.Group == 0 {
		ve.Add("group", "This field is required.")
	} else {
		ok, err := groups.Exists(ctx, f.Group)
		if err != nil {
			return fmt.Errorf("failed to look up group: %w", err)
		}
		if !ok {
			ve.Add("group", "Select a valid choice. That choice is not one of the available choices.")
		}
	}

	return ve.Err()
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
