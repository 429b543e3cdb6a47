package i18n

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogMessageByAcceptLanguage(t *testing.T) {
	catalog, err := New("ar")
	require.NoError(t, err)

	assert.Equal(t, "The course is full.", catalog.Message("en-US,en;q=0.9", "COURSE_FULL", "x"))
	assert.Equal(t, "الكورس مكتمل العدد", catalog.Message("ar-EG", "COURSE_FULL", "x"))
	assert.Equal(t, "الكورس مكتمل العدد", catalog.Message("", "COURSE_FULL", "x"))
	assert.Equal(t, "الكورس مكتمل العدد", catalog.Message("fr-FR", "COURSE_FULL", "x"))
}

func TestCatalogUnknownCodeFallsBack(t *testing.T) {
	catalog, err := New("en")
	require.NoError(t, err)

	assert.Equal(t, "raw message", catalog.Message("en", "SOMETHING_ELSE", "raw message"))
}

func TestCatalogFieldErrorsUseJSONNames(t *testing.T) {
	catalog, err := New("en")
	require.NoError(t, err)
	validate := validator.New()
	require.NoError(t, catalog.RegisterValidator(validate))

	type payload struct {
		CourseID string `json:"courseId" validate:"required"`
	}
	fields := catalog.FieldErrors(validate.Struct(payload{}))
	require.Contains(t, fields, "courseId")
	assert.Contains(t, fields["courseId"], "required")
}

func TestParseAcceptLanguage(t *testing.T) {
	assert.Equal(t, []string{"ar_EG", "ar", "en"}, parseAcceptLanguage("ar-EG,en;q=0.8"))
	assert.Nil(t, parseAcceptLanguage(""))
}
