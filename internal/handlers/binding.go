package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/stackit/stackit/backend/internal/apperrors"
	"github.com/stackit/stackit/backend/internal/auth"
	"github.com/stackit/stackit/backend/internal/middleware"
)

func init() {
	// Report json/form names in validation details instead of Go field names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	}
}

func bindJSON(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return bindingError(err, "Invalid request body")
	}
	return nil
}

func bindQuery(c *gin.Context, req any) error {
	if err := c.ShouldBindQuery(req); err != nil {
		return bindingError(err, "Invalid query parameters")
	}
	return nil
}

func bindingError(err error, fallback string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.InvalidArgument(fallback)
	}

	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return apperrors.Validation(fields...)
}

func fieldMessage(fe validator.FieldError) string {
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}

	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "Please provide a valid email"
	case "uuid":
		return fe.Field() + " must be a valid id"
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", fe.Field(), fe.Param(), unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", fe.Field(), fe.Param(), unit)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fe.Field() + " is invalid"
	}
}

func pathID(c *gin.Context, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.InvalidArgument("Invalid " + what + " ID")
	}
	return id, nil
}

func requireIdentity(c *gin.Context) (*auth.Identity, error) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return nil, apperrors.Unauthenticated("Access denied. Authentication required.")
	}
	return identity, nil
}

// callerID is the authenticated caller's id, or uuid.Nil for anonymous
// requests on routes behind OptionalAuth.
func callerID(c *gin.Context) uuid.UUID {
	if identity, ok := middleware.CurrentIdentity(c); ok {
		return identity.UserID
	}
	return uuid.Nil
}
