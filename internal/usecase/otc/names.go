package otc

import (
	"context"
	"strings"

	"github.com/simaogato/settlement-backend/internal/domain"
)

// UnknownUserName is shown when no resolver knows the user
const UnknownUserName = "Unknown User"

// NameResolver returns a display name and whether the user was found
type NameResolver func(ctx context.Context, userID int64) (string, bool)

// ClientNameResolver looks the user up as a bank client
func ClientNameResolver(identity domain.IdentityService) NameResolver {
	return func(ctx context.Context, userID int64) (string, bool) {
		person, err := identity.GetClientByID(ctx, userID)
		if err != nil || person == nil {
			return "", false
		}
		return formatName(person)
	}
}

// EmployeeNameResolver looks the user up as an employee
func EmployeeNameResolver(identity domain.IdentityService) NameResolver {
	return func(ctx context.Context, userID int64) (string, bool) {
		person, err := identity.GetEmployeeByID(ctx, userID)
		if err != nil || person == nil {
			return "", false
		}
		return formatName(person)
	}
}

// ResolveName returns the first name any resolver finds, in order.
// Lookup failures are not errors here: the listing degrades to UnknownUserName.
func ResolveName(ctx context.Context, resolvers []NameResolver, userID int64) string {
	for _, resolve := range resolvers {
		if name, ok := resolve(ctx, userID); ok {
			return name
		}
	}
	return UnknownUserName
}

func formatName(p *domain.Person) (string, bool) {
	name := strings.TrimSpace(p.FullName())
	if name == "" {
		return "", false
	}
	return name, true
}
