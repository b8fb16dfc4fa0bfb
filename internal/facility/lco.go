package facility

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"tomobs/internal/clients"
	"tomobs/internal/forms"
	"tomobs/internal/models"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
)

const LCOName = "LCO"

var lcoTerminalStates = []string{
	"COMPLETED",
	"WINDOW_EXPIRED",
	"CANCELED",
	"FAILURE_LIMIT_REACHED",
	"NOT_ATTEMPTED",
}

var lcoObservationTypes = []string{"NORMAL", "TIME_CRITICAL", "RAPID_RESPONSE"}

// accepted layouts for the window fields, tried in order
var windowLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

const lcoTimeLayout = "2006-01-02 15:04:05"

type lcoFacility struct {
	client    clients.LCOClient
	portalURL string
}

// NewLCOFacility wraps the observation portal client. portalURL is used to
// build links to submitted requests.
func NewLCOFacility(client clients.LCOClient, portalURL string) Facility {
	return &lcoFacility{
		client:    client,
		portalURL: strings.TrimRight(portalURL, "/"),
	}
}

func (f *lcoFacility) Name() string {
	return LCOName
}

func (f *lcoFacility) NewForm() Form {
	return &LCOForm{IPPValue: 1.05, MaxAirmass: 1.6, ObservationType: "NORMAL"}
}

func (f *lcoFacility) SubmitObservation(ctx context.Context, payload any) ([]string, error) {
	group, ok := payload.(*clients.RequestGroup)
	if !ok {
		return nil, fmt.Errorf("unexpected payload type %T", payload)
	}

	ids, err := f.client.SubmitRequestGroup(ctx, group)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, errors.New("portal accepted the request group but returned no request ids")
	}
	return ids, nil
}

func (f *lcoFacility) ObservationURL(observationID string) string {
	return f.portalURL + "/requests/" + url.PathEscape(observationID)
}

func (f *lcoFacility) ObservationStatus(ctx context.Context, observationID string) (string, error) {
	return f.client.GetRequestState(ctx, observationID)
}

func (f *lcoFacility) TerminalStates() []string {
	return lcoTerminalStates
}

// LCOForm is the submission form for a single-window imaging request.
type LCOForm struct {
	Name            string  `form:"name" json:"name" binding:"required"`
	Proposal        string  `form:"proposal" json:"proposal" binding:"required"`
	IPPValue        float64 `form:"ipp_value" json:"ipp_value" binding:"required,gte=0.5,lte=2"`
	Start           string  `form:"start" json:"start" binding:"required"`
	End             string  `form:"end" json:"end" binding:"required"`
	Filter          string  `form:"filter" json:"filter" binding:"required"`
	InstrumentType  string  `form:"instrument_type" json:"instrument_type" binding:"required"`
	ExposureCount   int     `form:"exposure_count" json:"exposure_count" binding:"required,min=1"`
	ExposureTime    float64 `form:"exposure_time" json:"exposure_time" binding:"required,gt=0"`
	MaxAirmass      float64 `form:"max_airmass" json:"max_airmass" binding:"required,gt=0"`
	ObservationType string  `form:"observation_type" json:"observation_type" binding:"required,oneof=NORMAL TIME_CRITICAL RAPID_RESPONSE"`
}

func (f *LCOForm) Fields() []forms.Field {
	return []forms.Field{
		{Name: "target_id", Label: "Target", Type: "integer", Required: true, Hidden: true},
		{Name: "name", Label: "Name", Type: "string", Required: true},
		{Name: "proposal", Label: "Proposal", Type: "string", Required: true},
		{Name: "ipp_value", Label: "Intra Proposal Priority", Type: "float", Required: true, Initial: f.IPPValue},
		{Name: "start", Label: "Start", Type: "datetime", Required: true},
		{Name: "end", Label: "End", Type: "datetime", Required: true},
		{Name: "filter", Label: "Filter", Type: "string", Required: true},
		{Name: "instrument_type", Label: "Instrument Type", Type: "string", Required: true},
		{Name: "exposure_count", Label: "Exposure Count", Type: "integer", Required: true},
		{Name: "exposure_time", Label: "Exposure Time", Type: "float", Required: true},
		{Name: "max_airmass", Label: "Max Airmass", Type: "float", Required: true, Initial: f.MaxAirmass},
		{Name: "observation_type", Label: "Observation Type", Type: "choice", Required: true, Choices: lcoObservationTypes, Initial: f.ObservationType},
	}
}

// Validate runs the checks that span more than one field. Per-field rules
// are enforced by the binding tags.
func (f *LCOForm) Validate() error {
	ve := forms.NewValidationError()

	start, err := parseWindowTime(f.Start)
	if err != nil {
		ve.Add("start", "Enter a valid date/time.")
	}
	end, err := parseWindowTime(f.End)
	if err != nil {
		ve.Add("end", "Enter a valid date/time.")
	}
	if ve.Err() == nil && !end.After(start) {
		ve.Add("end", "Window end must be after window start.")
	}
	if len(f.InstrumentType) < 3 {
		ve.Add("instrument_type", "Enter a valid instrument type.")
	}

	return ve.Err()
}

func (f *LCOForm) ObservationPayload(target *models.Target) (any, error) {
	if target == nil {
		return nil, errors.New("target is required to build an observation payload")
	}

	if len(f.InstrumentType) < 3 {
		return nil, fmt.Errorf("invalid instrument type %q", f.InstrumentType)
	}
	start, err := parseWindowTime(f.Start)
	if err != nil {
		return nil, fmt.Errorf("parse window start: %w", err)
	}
	end, err := parseWindowTime(f.End)
	if err != nil {
		return nil, fmt.Errorf("parse window end: %w", err)
	}

	return &clients.RequestGroup{
		Name:            f.Name,
		Proposal:        f.Proposal,
		IPPValue:        f.IPPValue,
		Operator:        "SINGLE",
		ObservationType: f.ObservationType,
		Requests: []clients.Request{{
			Configurations: []clients.Configuration{{
				Type:           "EXPOSE",
				InstrumentType: f.InstrumentType,
				Target: clients.Target{
					Name:  target.Name,
					Type:  "SIDEREAL",
					RA:    target.RA,
					Dec:   target.Dec,
					Epoch: 2000,
				},
				Constraints:       clients.Constraints{MaxAirmass: f.MaxAirmass},
				AcquisitionConfig: map[string]any{},
				GuidingConfig:     map[string]any{},
				InstrumentConfigs: []clients.InstrumentConfig{{
					ExposureTime:    f.ExposureTime,
					ExposureCount:   f.ExposureCount,
					OpticalElements: map[string]string{"filter": f.Filter},
				}},
			}},
			Windows: []clients.Window{{
				Start: start.UTC().Format(lcoTimeLayout),
				End:   end.UTC().Format(lcoTimeLayout),
			}},
			Location: clients.Location{
				TelescopeClass: strings.ToLower(f.InstrumentType[:3]),
			},
		}},
	}, nil
}

func (f *LCOForm) SerializeParameters() (datatypes.JSON, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("serialize parameters: %w", err)
	}
	return datatypes.JSON(data), nil
}

func parseWindowTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range windowLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", value)
}
