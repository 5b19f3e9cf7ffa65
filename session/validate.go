package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nstehr/armada/armada-core/model"
	"github.com/nstehr/armada/armada-core/orders"
)

// newValidator builds the request validator with the order vocabulary
// registered as custom tags.
func newValidator() (*validator.Validate, error) {
	v := validator.New()
	if err := v.RegisterValidation("order_kind", validateOrderKind); err != nil {
		return nil, fmt.Errorf("failed to register order_kind validator: %w", err)
	}
	return v, nil
}

func validateOrderKind(fl validator.FieldLevel) bool {
	_, err := orders.SpecFor(model.OrderKind(fl.Field().String()))
	return err == nil
}

// describe turns validation errors into one line the engine can log.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Namespace() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Namespace(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Namespace(), fe.Param())
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", fe.Namespace(), fe.Param())
	case "order_kind":
		return fmt.Sprintf("%s %q is not an order kind", fe.Namespace(), fe.Value())
	}
	return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
}
