package services

import (
	"errors"

	"expensegroups/internal/auth"
	"expensegroups/internal/core"
)

var (
	ErrStaleActiveGroup  = errors.New("the selected group no longer exists or you are no longer a member")
	ErrUnknownUser       = errors.New("no user with that email")
	ErrAlreadyMember     = errors.New("user is already a member")
	ErrCannotRemoveOwner = errors.New("the group owner cannot be removed")
)

var validationErrors = []error{
	core.ErrInvalidAmount,
	core.ErrEmptyDescription,
	core.ErrDescriptionTooLong,
	core.ErrInvalidDate,
	core.ErrEmptyGroupName,
	core.ErrOwnerNotMember,
	core.ErrEmptyPatch,
	core.ErrInvalidDay,
	ErrStaleActiveGroup,
	ErrUnknownUser,
	ErrAlreadyMember,
	ErrCannotRemoveOwner,
	auth.ErrWeakPassword,
	auth.ErrInvalidEmail,
	auth.ErrEmailExists,
	auth.ErrInvalidCredentials,
}

// IsValidation reports whether err is caused by user input and should be
// shown next to the form rather than logged as a failure.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// UserMessage returns the text shown to the user for a validation error.
func UserMessage(err error) string {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return capitalize(target.Error())
		}
	}
	return "Something went wrong, please try again."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
