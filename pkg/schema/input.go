package schema

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// ProspectInput is what the UI submits to create or edit a prospect.
// A non-empty ID that matches a visible prospect turns the submission into an update.
type ProspectInput struct {
	ID            string   `json:"id,omitempty"`
	Name          string   `json:"name" validate:"required"`
	Email         string   `json:"email" validate:"required,email"`
	Phone         string   `json:"phone,omitempty"`
	Company       string   `json:"company,omitempty"`
	AUMValue      *float64 `json:"aumValue,omitempty" validate:"omitempty,gte=0"`
	Priority      Priority `json:"priority,omitempty" validate:"omitempty,oneof=alta media baixa"`
	PipelineStage Stage    `json:"pipelineStage,omitempty" validate:"omitempty,stage"`
}

// ActivityInput is what the UI submits to create or edit an activity.
type ActivityInput struct {
	ID            string     `json:"id,omitempty"`
	ProspectID    string     `json:"prospectId" validate:"required"`
	Type          string     `json:"type,omitempty"`
	Title         string     `json:"title" validate:"required"`
	Description   string     `json:"description,omitempty"`
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
}

// OpportunityInput is what the UI submits to capture an opportunity.
type OpportunityInput struct {
	FunnelType  FunnelType `json:"funnelType" validate:"required,oneof=consorcio seguros cambio eventos"`
	Name        string     `json:"name" validate:"required"`
	Email       string     `json:"email" validate:"required,email"`
	Phone       string     `json:"phone,omitempty"`
	Company     string     `json:"company,omitempty"`
	Value       *float64   `json:"value,omitempty" validate:"omitempty,gte=0"`
	Description string     `json:"description,omitempty"`
	Stage       string     `json:"stage,omitempty"`
}

// Normalize trims free-text fields.
func (in *ProspectInput) Normalize() {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Company = strings.TrimSpace(in.Company)
}

// Normalize trims free-text fields.
func (in *ActivityInput) Normalize() {
	in.ID = strings.TrimSpace(in.ID)
	in.ProspectID = strings.TrimSpace(in.ProspectID)
	in.Type = strings.TrimSpace(in.Type)
	in.Title = strings.TrimSpace(in.Title)
}

// Normalize trims free-text fields.
func (in *OpportunityInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Company = strings.TrimSpace(in.Company)
	in.Stage = strings.TrimSpace(in.Stage)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their JSON name so errors match what the UI sent.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("stage", func(fl validator.FieldLevel) bool {
			return Stage(fl.Field().String()).Valid()
		})
		validate = v
	})
	return validate
}

// Validate checks struct tags and returns the first failure as a *ValidationError.
func Validate(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Field: "input", Reason: err.Error()}
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return Required(fe.Field())
	case "email":
		return &ValidationError{Field: fe.Field(), Reason: "is not a valid e-mail address"}
	case "oneof":
		return &ValidationError{Field: fe.Field(), Reason: "must be one of: " + fe.Param()}
	case "stage":
		return &ValidationError{Field: fe.Field(), Reason: "is not a pipeline stage"}
	default:
		return &ValidationError{Field: fe.Field(), Reason: "failed " + fe.Tag()}
	}
}
