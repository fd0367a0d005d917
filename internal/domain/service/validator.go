package service

import (
	"github.com/jonny/chatbridge/internal/domain/model"
	"github.com/jonny/chatbridge/internal/domain/schema"
)

// ActivityValidator confirms a parsed activity is well-formed before it is
// surfaced. It performs no I/O.
type ActivityValidator struct {
	schema *schema.Validator
}

func NewActivityValidator() *ActivityValidator {
	return &ActivityValidator{schema: schema.New()}
}

// Check returns the reason an activity would be dropped, or nil.
func (v *ActivityValidator) Check(activity *model.Activity) error {
	if activity == nil {
		return errNilActivity
	}
	return v.schema.Validate(activity, schema.ContractActivity)
}

// Validate returns the activity when it passes, or nil when it must be dropped.
func (v *ActivityValidator) Validate(activity *model.Activity) *model.Activity {
	if v.Check(activity) != nil {
		return nil
	}
	return activity
}
