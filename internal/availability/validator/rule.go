package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"slotline/pkg/logger"
	"slotline/pkg/model"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type RuleValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewRuleValidator(log *logger.Logger) *RuleValidator {
	v := validator.New()

	if err := v.RegisterValidation("local_time", validateLocalTime); err != nil {
		log.Fatal("Failed to register 'local_time' validator", "error", err)
	}

	return &RuleValidator{
		validate: v,
		logger:   log,
	}
}

func validateLocalTime(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if value == "" {
		return false
	}
	_, err := time.Parse("15:04", value)
	return err == nil
}

// ValidateRule checks struct constraints plus end strictly after start.
// Rules rejected here never reach the evaluator.
func (v *RuleValidator) ValidateRule(rule *model.AvailabilityRule) error {
	if err := v.validate.Struct(rule); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if err := validateWindowOrder(rule.LocalStart, rule.LocalEnd); err != nil {
		return ValidationErrors{{Field: "local_end", Message: err.Error()}}
	}
	return nil
}

// ValidateException checks struct constraints and that the exception's
// windows are well-formed and mutually non-overlapping.
func (v *RuleValidator) ValidateException(exc *model.AvailabilityException) error {
	if err := v.validate.Struct(exc); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	for i, w := range exc.Windows {
		if err := validateWindowOrder(w.Start, w.End); err != nil {
			return ValidationErrors{{Field: fmt.Sprintf("windows[%d]", i), Message: err.Error()}}
		}
	}

	for i := 0; i < len(exc.Windows); i++ {
		for j := i + 1; j < len(exc.Windows); j++ {
			if windowsOverlap(exc.Windows[i], exc.Windows[j]) {
				return ValidationErrors{{
					Field:   "windows",
					Message: fmt.Sprintf("windows %d and %d overlap", i, j),
				}}
			}
		}
	}
	return nil
}

func validateWindowOrder(start, end string) error {
	startT, err := time.Parse("15:04", start)
	if err != nil {
		return fmt.Errorf("start %q must be in HH:MM 24-hour format", start)
	}
	endT, err := time.Parse("15:04", end)
	if err != nil {
		return fmt.Errorf("end %q must be in HH:MM 24-hour format", end)
	}
	if !endT.After(startT) {
		return fmt.Errorf("end %q must be strictly after start %q", end, start)
	}
	return nil
}

// Windows are same-day "HH:MM" pairs; lexicographic order matches
// chronological order.
func windowsOverlap(a, b model.LocalWindow) bool {
	return a.Start < b.End && b.Start < a.End
}

func (v *RuleValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "datetime":
			message = fmt.Sprintf("%s must be a date in YYYY-MM-DD format", err.Field())
		case "local_time":
			message = fmt.Sprintf("%s must be in HH:MM 24-hour format", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
