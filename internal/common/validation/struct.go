package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	structValidator *validator.Validate
	structOnce      sync.Once

	subscriptionPattern = regexp.MustCompile(`^(projects/[a-z][a-z0-9-]{4,28}[a-z0-9]/subscriptions/)?[A-Za-z][A-Za-z0-9._~%+-]{2,254}$`)
)

// FieldError is a single struct validation failure
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (e FieldError) String() string {
	switch e.Tag {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", e.Field, strings.ReplaceAll(e.Param, " ", ", "))
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", e.Field, e.Param)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", e.Field, e.Param)
	case "pubsub_subscription":
		return fmt.Sprintf("%s must be a subscription ID or projects/<project>/subscriptions/<id>", e.Field)
	default:
		return fmt.Sprintf("%s failed %s validation", e.Field, e.Tag)
	}
}

func instance() *validator.Validate {
	structOnce.Do(func() {
		v := validator.New()
		// Report fields by the environment variable that sets them
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			if name := strings.SplitN(fld.Tag.Get("env"), ",", 2)[0]; name != "" && name != "-" {
				return name
			}
			return fld.Name
		})
		_ = v.RegisterValidation("pubsub_subscription", func(fl validator.FieldLevel) bool {
			return subscriptionPattern.MatchString(fl.Field().String())
		})
		structValidator = v
	})
	return structValidator
}

// ValidateStruct checks the `validate` tags of s and returns a validation
// error listing every failing field
func ValidateStruct(s interface{}) error {
	return NewValidator().RequireStruct(s).Error()
}

// StructErrors returns the individual failures of s
func StructErrors(s interface{}) []FieldError {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "struct", Tag: err.Error()}}
	}

	result := make([]FieldError, 0, len(validationErrors))
	for _, fe := range validationErrors {
		result = append(result, FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()})
	}
	return result
}

// RequireStruct adds one message per failing `validate` tag of s
func (v *Validator) RequireStruct(s interface{}) *Validator {
	for _, f := range StructErrors(s) {
		v.failf("%s", f.String())
	}
	return v
}
