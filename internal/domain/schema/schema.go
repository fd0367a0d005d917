// Package schema validates normalized messages and activities against named
// contracts before they cross the adapter boundary.
package schema

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonny/chatbridge/internal/domain/model"
)

const (
	// ContractSend is the contract for outbound messages passed to Adapter.Send.
	ContractSend = "send"
	// ContractActivity is the contract for parsed inbound activities.
	ContractActivity = "activity"
)

var ErrUnknownContract = errors.New("unknown schema contract")

// ValidationError lists every field that violated a contract.
type ValidationError struct {
	Contract string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema %s: %s", e.Contract, strings.Join(e.Problems, "; "))
}

// Validator checks values against the named contracts. It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// New builds a Validator with the JSON field names and the object-level rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	v.RegisterStructValidation(validateMessageObject, model.MessageObject{})
	v.RegisterStructValidation(validateObject, model.Object{})
	return &Validator{v: v}
}

var std = New()

// Validate checks value against contract using the package-level Validator.
func Validate(value any, contract string) error {
	return std.Validate(value, contract)
}

// Validate checks value against contract. The value must be the model type the
// contract describes (or a pointer to it).
func (s *Validator) Validate(value any, contract string) error {
	switch contract {
	case ContractSend:
		switch value.(type) {
		case model.Message, *model.Message:
		default:
			return fmt.Errorf("schema %s: unexpected value of type %T", contract, value)
		}
	case ContractActivity:
		switch value.(type) {
		case model.Activity, *model.Activity:
		default:
			return fmt.Errorf("schema %s: unexpected value of type %T", contract, value)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownContract, contract)
	}

	if err := s.v.Struct(value); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &ValidationError{Contract: contract, Problems: describe(verrs)}
		}
		return fmt.Errorf("schema %s: %w", contract, err)
	}
	return nil
}

func describe(verrs validator.ValidationErrors) []string {
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		// Drop the root struct name: "Message.object.type" -> "object.type".
		if idx := strings.IndexByte(field, '.'); idx != -1 {
			field = field[idx+1:]
		}
		switch {
		case fe.Tag() == "oneof":
			problems = append(problems, fmt.Sprintf("%s %q not in [%s]", field, fmt.Sprint(fe.Value()), fe.Param()))
		case fe.Param() != "":
			problems = append(problems, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		default:
			problems = append(problems, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return problems
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func validateMessageObject(sl validator.StructLevel) {
	obj := sl.Current().Interface().(model.MessageObject)
	checkContent(sl, obj.Type, obj.Content, obj.URL)
}

func validateObject(sl validator.StructLevel) {
	obj := sl.Current().Interface().(model.Object)
	checkContent(sl, obj.Type, obj.Content, obj.URL)
}

// checkContent enforces that notes carry text and media objects carry a URL.
func checkContent(sl validator.StructLevel, typ model.ObjectType, content, url string) {
	switch {
	case typ == model.ObjectTypeNote && strings.TrimSpace(content) == "":
		sl.ReportError(content, "content", "Content", "required_for_note", "")
	case typ.IsMedia() && strings.TrimSpace(url) == "":
		sl.ReportError(url, "url", "URL", "required_for_media", "")
	}
}
