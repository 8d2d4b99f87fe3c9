package activity

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/jukwaa/core"
)

var (
	stageKeyTag   = "stagekey"
	stageKeyText  = "only letters, digits, underscores and hyphens are allowed"
	stageKeyRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// InitValidators registers the activity validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(stageKeyTag, stageKeyValidation)
	core.RegisterCustomTranslation(validate, translator, stageKeyTag, stageKeyText)
}

// stageKeyValidation checks that a stage key is URL and HTML-id friendly.
func stageKeyValidation(fl validator.FieldLevel) bool {
	return stageKeyRegex.MatchString(fl.Field().String())
}
