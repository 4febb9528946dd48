package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationProblem writes a 400 problem describing err. Field errors from
// the validator are listed as "field: rule".
func ValidationProblem(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		ProblemFor(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fe.Field()+": "+rule)
	}
	ProblemFor(w, r, http.StatusBadRequest, strings.Join(parts, "; "))
}
