package storage

import (
	"context"
	"fmt"
)

// ByEmail builds the filter for collections keyed by email (users, reviews)
func ByEmail(email string) Filter {
	return Filter{FieldEmail: email}
}

// HasAdminRole reports whether a stored user carries the admin role
func HasAdminRole(user Document) bool {
	role, _ := user[FieldRole].(string)
	return role == RoleAdmin
}

// Flag reads a boolean marker such as main or mainAdmin. Anything other
// than a stored true is false.
func Flag(doc Document, field string) bool {
	v, _ := doc[field].(bool)
	return v
}

// Without returns a shallow copy of doc lacking the named fields
func Without(doc Document, fields ...string) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// RevokeRole demotes user by replacing its stored document with a copy
// that lacks the role field. Every other field survives unchanged, and the
// record keeps its _id.
func RevokeRole(ctx context.Context, users Collection, user Document) (*UpdateResult, error) {
	email, ok := user[FieldEmail].(string)
	if !ok || email == "" {
		return nil, fmt.Errorf("user document has no email")
	}

	replacement := Without(user, FieldRole, FieldID)
	result, err := users.ReplaceOne(ctx, ByEmail(email), replacement)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke role: %w", err)
	}
	return result, nil
}

// GrantAdmin sets the admin role on the user keyed by email without upserting
func GrantAdmin(ctx context.Context, users Collection, email string) (*UpdateResult, error) {
	result, err := users.UpdateOne(ctx, ByEmail(email), Document{FieldRole: RoleAdmin}, false)
	if err != nil {
		return nil, fmt.Errorf("failed to grant admin: %w", err)
	}
	return result, nil
}
