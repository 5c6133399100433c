package resource

import (
    "errors"
    "fmt"
    "reflect"
    "strings"

    "github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
    v := validator.New()
    v.RegisterTagNameFunc(func(fld reflect.StructField) string {
        name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
        if name == "-" {
            return ""
        }
        return name
    })
    return v
}

// Validate checks the structural rules a definition must satisfy before
// any surface is built from it.
func Validate(def *Definition) error {
    err := validate.Struct(def)
    if err == nil {
        return nil
    }
    var verrs validator.ValidationErrors
    if !errors.As(err, &verrs) {
        return &Error{Code: ValidationError, Message: fmt.Sprintf("validate %s: %v", def.Location, err), Location: def.Location, Cause: err}
    }
    fields := make([]FieldError, 0, len(verrs))
    for _, fe := range verrs {
        fields = append(fields, FieldError{Field: fieldPath(fe.Namespace()), Message: fieldMessage(fe)})
    }
    name := def.Kind
    if name == "" {
        name = def.Location
    }
    return &Error{
        Code:        ValidationError,
        Message:     fmt.Sprintf("resource %s: %s: %s", name, fields[0].Field, fields[0].Message),
        Location:    def.Location,
        JSONPointer: "#/" + fields[0].Field,
        Fields:      fields,
        Cause:       err,
    }
}

// fieldPath turns "Definition.schema.items.properties[0]" into
// "schema/items/properties/0".
func fieldPath(ns string) string {
    if _, rest, ok := strings.Cut(ns, "."); ok {
        ns = rest
    }
    ns = strings.NewReplacer("[", ".", "]", "").Replace(ns)
    return strings.ReplaceAll(ns, ".", "/")
}

func fieldMessage(fe validator.FieldError) string {
    switch fe.Tag() {
    case "required":
        return "is required"
    case "required_if":
        return fmt.Sprintf("is required when %s", strings.ReplaceAll(fe.Param(), " ", " is "))
    case "oneof":
        return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
    case "min":
        return fmt.Sprintf("must have at least %s entries", fe.Param())
    default:
        return fmt.Sprintf("failed %q validation", fe.Tag())
    }
}
