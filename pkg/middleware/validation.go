package middleware

import (
	stderrors "errors"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/wms-platform/fulfillment-service/pkg/errors"
)

var (
	// scanner output: shelf, product and route barcodes
	barcodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)
	// printable text: names and descriptions end up on labels
	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
)

var customValidations = map[string]validator.Func{
	"barcode": func(fl validator.FieldLevel) bool {
		return barcodePattern.MatchString(fl.Field().String())
	},
	"safe_string": func(fl validator.FieldLevel) bool {
		return !controlChars.MatchString(fl.Field().String())
	},
}

var (
	standalone   *validator.Validate
	registerOnce sync.Once
)

// InitValidator installs the custom tags and JSON field naming on gin's
// binding engine and on a standalone validator, which it returns.
func InitValidator() *validator.Validate {
	registerOnce.Do(func() {
		standalone = validator.New()
		configure(standalone)
		if engine, ok := binding.Validator.Engine().(*validator.Validate); ok {
			configure(engine)
		}
	})
	return standalone
}

func configure(v *validator.Validate) {
	for tag, fn := range customValidations {
		_ = v.RegisterValidation(tag, fn)
	}
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
}

var tagMessages = map[string]string{
	"required":    "is required",
	"min":         "must be at least %s",
	"max":         "must be at most %s",
	"gt":          "must be greater than %s",
	"gte":         "must be greater than or equal to %s",
	"lte":         "must be less than or equal to %s",
	"oneof":       "must be one of: %s",
	"barcode":     "must be a valid barcode (alphanumeric, dot, dash or underscore, at most 64 characters)",
	"safe_string": "contains invalid characters",
	"dive":        "contains an invalid element",
}

func fieldMessage(fe validator.FieldError) string {
	msg, ok := tagMessages[fe.Tag()]
	if !ok {
		return "is invalid"
	}
	return strings.Replace(msg, "%s", fe.Param(), 1)
}

// ValidationErrorFormatter maps each failing field, by JSON name, to a message
func ValidationErrorFormatter(err error) map[string]string {
	fields := make(map[string]string)
	var invalid validator.ValidationErrors
	if stderrors.As(err, &invalid) {
		for _, fe := range invalid {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}
	return fields
}

func bindError(err error, what string) *errors.AppError {
	var invalid validator.ValidationErrors
	if stderrors.As(err, &invalid) {
		return errors.ErrValidationWithFields("invalid "+what, ValidationErrorFormatter(invalid))
	}
	return errors.ErrBadRequest("invalid " + what + ": " + err.Error())
}

// BindAndValidate decodes the JSON body into obj. Failed binding tags come
// back as VALIDATION_ERROR with per-field details, anything else as
// BAD_REQUEST.
func BindAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindJSON(obj); err != nil {
		return bindError(err, "request body")
	}
	return nil
}

func BindQuery(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindQuery(obj); err != nil {
		return bindError(err, "query parameters")
	}
	return nil
}

// ContentType rejects non-JSON bodies on POST, PUT and PATCH. Empty bodies
// pass so action endpoints can be called without one.
func ContentType() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if c.Request.ContentLength > 0 && !strings.HasPrefix(c.ContentType(), "application/json") {
				AbortWithAppError(c, errors.NewAppError("INVALID_CONTENT_TYPE", "Content-Type must be application/json", http.StatusUnsupportedMediaType))
				return
			}
		}
		c.Next()
	}
}
