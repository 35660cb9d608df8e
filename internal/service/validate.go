package service

import (
	"regexp"
	"strings"

	"skillforge/user-service/internal/model"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var (
	hasUpper   = regexp.MustCompile(`[A-Z]`)
	hasLower   = regexp.MustCompile(`[a-z]`)
	hasDigit   = regexp.MustCompile(`[0-9]`)
	hasSpecial = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>\/?]`)
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func checkPasswordPolicy(verr *ValidationError, password string) {
	switch {
	case len(password) < 8:
		verr.add("password", "must be at least 8 characters")
	case !hasUpper.MatchString(password):
		verr.add("password", "must contain an uppercase letter")
	case !hasLower.MatchString(password):
		verr.add("password", "must contain a lowercase letter")
	case !hasDigit.MatchString(password):
		verr.add("password", "must contain a digit")
	case !hasSpecial.MatchString(password):
		verr.add("password", "must contain a special character")
	}
}

func validateRegistration(params RegisterParams) (model.Role, error) {
	verr := &ValidationError{}

	if !validEmail(normalizeEmail(params.Email)) {
		verr.add("email", "must be a valid email address")
	}
	checkPasswordPolicy(verr, params.Password)
	if strings.TrimSpace(params.FirstName) == "" {
		verr.add("firstName", "must not be empty")
	}
	if strings.TrimSpace(params.LastName) == "" {
		verr.add("lastName", "must not be empty")
	}

	role, ok := model.ParseRole(params.Role)
	if !ok {
		verr.add("role", "must be STUDENT or TEACHER")
	}

	return role, verr.orNil()
}
