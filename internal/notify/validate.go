package notify

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	termerrors "github.com/Aman-CERP/termsearch/internal/errors"
)

// validate is a singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by their JSON names, e.g. body.nodes[2].type.graph.id.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks the structural preconditions of processing: every node
// has an id and a graph id. A failing notification must not be dispatched
// at all.
func Validate(n *Notification) error {
	if n == nil {
		return termerrors.MalformedNotification("notification is nil")
	}
	if err := validate.Struct(n); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return termerrors.InternalError("notification validation failed", err)
	}

	// Report the first violation; the rest are usually the same mistake.
	e := validationErrs[0]
	field := strings.TrimPrefix(e.Namespace(), "Notification.")

	var msg string
	switch e.Tag() {
	case "required":
		msg = fmt.Sprintf("%s: field is required", field)
	default:
		msg = fmt.Sprintf("%s: validation failed (%s)", field, e.Tag())
	}

	te := termerrors.MalformedNotification(msg).WithDetail("field", field)
	if len(validationErrs) > 1 {
		te = te.WithDetail("violations", fmt.Sprintf("%d", len(validationErrs)))
	}
	return te
}
