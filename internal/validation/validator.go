package validation

import (
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a validator with the struct-level rules registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})
	v.RegisterStructValidation(categoryStructValidation, CategoryRequest{})

	return v
}

// createOrderStructValidation rejects blank tables. A menu id may repeat
// across lines, e.g. the same drink with different notes.
func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)

	if strings.TrimSpace(string(req.Table)) == "" {
		sl.ReportError(req.Table, "table", "Table", "notblank", "")
	}
}

func categoryStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CategoryRequest)
	if req.Name != "" && strings.TrimSpace(req.Name) == "" {
		sl.ReportError(req.Name, "name", "Name", "notblank", "")
	}
}
