package forms

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gin-gonic/gin/binding"
)

func TestFromBindErrorUsesFormNames(t *testing.T) {
	form := ManualObservationForm{TargetID: 1}
	err := FromBindError(binding.Validator.ValidateStruct(&form))

	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("FromBindError() = %v, want ValidationError", err)
	}
	for _, field := range []string{"facility", "observation_id"} {
		if ve.Fields[field] != "This field is required." {
			t.Errorf("Fields[%q] = %q", field, ve.Fields[field])
		}
	}
	if _, ok := ve.Fields["target_id"]; ok {
		t.Error("target_id was set and should not be reported")
	}
}

func TestFromBindErrorNonValidation(t *testing.T) {
	if FromBindError(nil) != nil {
		t.Error("FromBindError(nil) should be nil")
	}

	err := FromBindError(errors.New(`strconv.ParseUint: parsing "abc": invalid syntax`))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("FromBindError() = %v, want ValidationError", err)
	}
	if _, ok := ve.Fields[NonFieldErrors]; !ok {
		t.Errorf("Fields = %v, want %s", ve.Fields, NonFieldErrors)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	ve := NewValidationError()
	if ve.Err() != nil {
		t.Fatal("empty ValidationError should be nil")
	}
	ve.Add("b", "second")
	ve.Add("a", "first")
	ve.Add("a", "ignored")

	if got := ve.Error(); got != "validation failed: a: first; b: second" {
		t.Errorf("Error() = %q", got)
	}
}

func TestManualObservationFormValidate(t *testing.T) {
	facilities := []string{"GEM", "LCO"}
	tests := []struct {
		name      string
		form      ManualObservationForm
		wantField string
	}{
		{name: "valid", form: ManualObservationForm{TargetID: 3, Facility: "LCO", ObservationID: "abc"}},
		{name: "unknown facility", form: ManualObservationForm{TargetID: 3, Facility: "KECK", ObservationID: "abc"}, wantField: "facility"},
		{name: "case sensitive facility", form: ManualObservationForm{TargetID: 3, Facility: "lco", ObservationID: "abc"}, wantField: "facility"},
		{name: "missing observation id", form: ManualObservationForm{TargetID: 3, Facility: "GEM"}, wantField: "observation_id"},
		{name: "blank observation id", form: ManualObservationForm{TargetID: 3, Facility: "GEM", ObservationID: " \t "}, wantField: "observation_id"},
		{name: "missing target", form: ManualObservationForm{Facility: "GEM", ObservationID: "x"}, wantField: "target_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate(facilities)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			if _, ok := ve.Fields[tt.wantField]; !ok {
				t.Errorf("Fields = %v, want %q", ve.Fields, tt.wantField)
			}
		})
	}
}

func TestManualObservationFormTrimsObservationID(t *testing.T) {
	form := ManualObservationForm{TargetID: 3, Facility: "GEM", ObservationID: "  GN-2024A-Q-1\n"}
	if err := form.Validate([]string{"GEM"}); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if form.ObservationID != "GN-2024A-Q-1" {
		t.Errorf("ObservationID = %q", form.ObservationID)
	}
}

func TestManualObservationFieldsChoices(t *testing.T) {
	fields := ManualObservationFields([]string{"GEM", "LCO"})
	for _, f := range fields {
		if f.Name == "facility" {
			if strings.Join(f.Choices, ",") != "GEM,LCO" {
				t.Errorf("facility choices = %v", f.Choices)
			}
			return
		}
	}
	t.Fatal("facility field missing")
}

type fakeProducts struct {
	existing map[uint]bool
	err      error
}

func (f fakeProducts) ExistingIDs(ctx context.Context, ids []uint) ([]uint, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []uint
	for _, id := range ids {
		if f.existing[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

type fakeGroups map[uint]bool

func (f fakeGroups) Exists(ctx context.Context, id uint) (bool, error) {
	return f[id], nil
}

func TestAddProductToGroupFormValidate(t *testing.T) {
	ctx := context.Background()
	products := fakeProducts{existing: map[uint]bool{1: true, 2: true}}
	groups := fakeGroups{10: true}

	form := AddProductToGroupForm{Products: []uint{1, 2, 2, 1}, Group: 10}
	if err := form.Validate(ctx, products, groups); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(form.Products) != 2 {
		t.Errorf("Products = %v, want duplicates removed", form.Products)
	}

	tests := []struct {
		name      string
		form      AddProductToGroupForm
		wantField string
	}{
		{name: "unknown product", form: AddProductToGroupForm{Products: []uint{1, 3}, Group: 10}, wantField: "products"},
		{name: "no products", form: AddProductToGroupForm{Group: 10}, wantField: "products"},
		{name: "unknown group", form: AddProductToGroupForm{Products: []uint{1}, Group: 11}, wantField: "group"},
		{name: "missing group", form: AddProductToGroupForm{Products: []uint{1}}, wantField: "group"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.Validate(ctx, products, groups)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate() error = %v, want ValidationError", err)
			}
			if _, ok := ve.Fields[tt.wantField]; !ok {
				t.Errorf("Fields = %v, want %q", ve.Fields, tt.wantField)
			}
		})
	}
}

func TestAddProductToGroupFormLookupFailure(t *testing.T) {
	form := AddProductToGroupForm{Products: []uint{1}, Group: 10}
	err := form.Validate(context.Background(), fakeProducts{err: errors.New("db down")}, fakeGroups{})

	var ve *ValidationError
	if err == nil || errors.As(err, &ve) {
		t.Fatalf("Validate() error = %v, want plain lookup error", err)
	}
}
