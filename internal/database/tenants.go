package database

import (
	"context"
	"fmt"
)

// ActiveTenantIDs returns the IDs of all active tenants, oldest-first.
// The tenants table is owned by the main backend; this is a read-only
// view of it.
func (d *Database) ActiveTenantIDs(ctx context.Context) ([]string, error) {
	query := `SELECT id FROM tenants WHERE active = true ORDER BY created_at`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active tenants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
