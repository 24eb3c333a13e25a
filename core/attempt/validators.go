package attempt

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/examguard/core"
	"github.com/trezcool/examguard/core/proctor"
)

var (
	eventTypeTag  = "eventtype"
	eventTypeText = "unknown event type"

	viewportTag  = "viewport"
	viewportText = "width and height must be reported together"
)

// InitValidators registers the attempt validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(eventTypeTag, eventTypeValidation)
	core.RegisterCustomTranslation(validate, translator, eventTypeTag, eventTypeText)

	validate.RegisterStructValidation(clientStateStructValidation, ClientState{})
	core.RegisterCustomTranslation(validate, translator, viewportTag, viewportText)
}

func eventTypeValidation(fl validator.FieldLevel) bool {
	return proctor.EventType(fl.Field().String()).Valid()
}

func clientStateStructValidation(sl validator.StructLevel) {
	state := sl.Current().Interface().(ClientState)
	if (state.Width == nil) != (state.Height == nil) {
		sl.ReportError(state.Width, "width", "Width", viewportTag, "")
	}
}
