package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iho/tableledger/internal/domain"
	"github.com/iho/tableledger/internal/infrastructure/postgres/generated"
)

// MembershipAuthorizer resolves roles from restaurant_members.
type MembershipAuthorizer struct {
	db generated.DBTX
}

// NewMembershipAuthorizer creates a new MembershipAuthorizer.
func NewMembershipAuthorizer(db generated.DBTX) *MembershipAuthorizer {
	return &MembershipAuthorizer{db: db}
}

// RoleFor returns the principal's role on the restaurant. Service principals
// act as managers on every restaurant.
func (a *MembershipAuthorizer) RoleFor(ctx context.Context, principal domain.Principal, restaurantID string) (domain.Role, error) {
	if principal.Service {
		return domain.RoleManager, nil
	}
	if principal.UserID == "" {
		return "", domain.ErrUnauthorized
	}

	var role string
	err := a.db.QueryRow(ctx,
		`SELECT role FROM restaurant_members WHERE restaurant_id = $1 AND user_id = $2`,
		restaurantID, principal.UserID,
	).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%w: not a member of restaurant %s", domain.ErrUnauthorized, restaurantID)
		}
		return "", err
	}

	return domain.Role(role), nil
}

// AddMember grants a user a role on a restaurant, replacing any earlier role.
func (a *MembershipAuthorizer) AddMember(ctx context.Context, restaurantID, userID string, role domain.Role) error {
	if !role.IsValid() {
		return domain.ErrInsufficientRole
	}

	_, err := a.db.Exec(ctx, `
		INSERT INTO restaurant_members (restaurant_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (restaurant_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`, restaurantID, userID, string(role))

	return err
}
