package repository

import (
	"context"
	"database/sql"

	"github.com/rentora/device-booking/internal/model"
)

// DeviceModelRepo reads the device catalog.  The catalog is owned by
// the inventory subsystem; this core only consults model stock totals
// and resolves devices during allocation.
type DeviceModelRepo struct {
	db *sql.DB
}

// NewDeviceModelRepo returns a new DeviceModelRepo bound to the provided database.
func NewDeviceModelRepo(db *sql.DB) *DeviceModelRepo { return &DeviceModelRepo{db: db} }

// TotalUnits returns the physical inventory count for the model.  An
// unknown model has zero units; availability callers treat that as
// "nothing to rent" rather than an error.
func (r *DeviceModelRepo) TotalUnits(ctx context.Context, modelID uint64) (uint32, error) {
	var total uint32
	err := r.db.QueryRowContext(ctx,
		`SELECT total_units FROM device_models WHERE id = ?`, modelID).Scan(&total)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return total, nil
}

// GetByID fetches a catalog row.  Returns ErrModelNotFound when the
// model does not exist; order creation uses this to reject unknown
// models up front.
func (r *DeviceModelRepo) GetByID(ctx context.Context, modelID uint64) (model.DeviceModel, error) {
	var m model.DeviceModel
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, brand, total_units, created_at, updated_at FROM device_models WHERE id = ?`,
		modelID).Scan(&m.ID, &m.Name, &m.Brand, &m.TotalUnits, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.DeviceModel{}, ErrModelNotFound
	}
	if err != nil {
		return model.DeviceModel{}, err
	}
	return m, nil
}

// DevicesForModelTx resolves which of the given device IDs are
// available units of the model, within the provided transaction.  The
// result preserves no particular order; callers compare lengths to
// detect IDs that are unknown, retired, in maintenance or belong to a
// different model.
func (r *DeviceModelRepo) DevicesForModelTx(ctx context.Context, tx *sql.Tx, modelID uint64, deviceIDs []uint64) ([]uint64, error) {
	if len(deviceIDs) == 0 {
		return nil, nil
	}
	query := `SELECT id FROM devices
			  WHERE device_model_id = ? AND status = 'AVAILABLE' AND id IN (` + placeholders(len(deviceIDs)) + `)`
	args := make([]interface{}, 0, len(deviceIDs)+1)
	args = append(args, modelID)
	for _, id := range deviceIDs {
		args = append(args, id)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
