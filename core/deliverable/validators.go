package deliverable

import (
	"math"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/scolab/backend/core"
)

var (
	halfStepTag  = "halfstep"
	halfStepText = "the note must be a multiple of 0.5"
)

// InitValidators registers the deliverable validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(halfStepTag, halfStepValidation)
	core.RegisterCustomTranslation(validate, translator, halfStepTag, halfStepText)
}

func halfStepValidation(fl validator.FieldLevel) bool {
	fld := fl.Field()
	if !fld.CanFloat() {
		return false
	}
	doubled := fld.Float() * 2
	return doubled == math.Trunc(doubled)
}
