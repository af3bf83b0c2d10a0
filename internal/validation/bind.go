package validation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// CodeValidation matches orders.CodeValidation so clients see one code for
// every field-level rejection.
const CodeValidation = "validation"

// BindAndValidate binds the JSON body into out and validates it. On failure it
// writes the response and returns the error so the handler can return early:
// a body that does not parse is 400, a body that parses but breaks a rule is
// an ordinary success:false envelope with per-field messages.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	return BindAndValidateStatus(c, out, v, http.StatusOK)
}

// BindAndValidateStatus is BindAndValidate with an explicit HTTP status for
// rule failures. The menu routes answer those with 400.
func BindAndValidateStatus(c *gin.Context, out interface{}, v *validatorv10.Validate, ruleStatus int) error {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid request body: " + err.Error(),
		})
		return err
	}

	if err := v.Struct(out); err != nil {
		fields := FieldErrors(err)
		c.JSON(ruleStatus, gin.H{
			"success": false,
			"error":   Summary(fields),
			"code":    CodeValidation,
			"fields":  fields,
		})
		return err
	}
	return nil
}

// FieldErrors maps json field names to readable messages.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		out["error"] = err.Error()
		return out
	}
	for _, fe := range ve {
		out[fieldPath(fe)] = message(fe)
	}
	return out
}

func fieldPath(fe validatorv10.FieldError) string {
	ns := fe.Namespace()
	// Drop the struct name prefix, e.g. "CreateOrderRequest.items[0].ID".
	for i := 0; i < len(ns); i++ {
		if ns[i] == '.' {
			return ns[i+1:]
		}
	}
	return ns
}

func message(fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "min":
		if fe.Kind().String() == "slice" {
			return "must have at least " + fe.Param() + " entry"
		}
		return "must be at least " + fe.Param()
	case "gte":
		return "must not be negative"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "url":
		return "must be a URL"
	}
	return fe.Error()
}

// Summary joins the field errors into one line for the error field.
func Summary(fields map[string]string) string {
	if len(fields) == 1 {
		for k, v := range fields {
			if k == "error" {
				return v
			}
			return k + " " + v
		}
	}
	return "invalid request"
}
