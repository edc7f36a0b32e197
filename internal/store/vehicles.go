package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"carlot/internal/models"
)

const vehicleColumns = "id, vin, year, make, model, mileage, price, drivetrain, transmission, motor, description, pic_ids, version, created_at, updated_at"

// vehicleFieldColumns maps form field names to columns; both use the same names.
var vehicleFieldColumns = map[string]struct{}{}

func init() {
	for _, name := range models.VehicleFieldNames {
		vehicleFieldColumns[name] = struct{}{}
	}
}

// CreateVehicle inserts a vehicle, assigning an id when it has none.
func (s *Store) CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error {
	if vehicle == nil {
		return fmt.Errorf("vehicle is required")
	}
	if vehicle.ID == "" {
		id, err := GenerateID(vehicleIDPrefix, func(id string) (bool, error) {
			return s.recordExists(ctx, "vehicles", id)
		})
		if err != nil {
			return err
		}
		vehicle.ID = id
	}

	now := time.Now().UTC()
	if vehicle.CreatedAt.IsZero() {
		vehicle.CreatedAt = now
	}
	vehicle.UpdatedAt = vehicle.CreatedAt
	if vehicle.PicIDs == nil {
		vehicle.PicIDs = []string{}
	}
	picIDs, err := encodePicIDs(vehicle.PicIDs)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vehicles (`+vehicleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		vehicle.ID,
		nullIfEmpty(vehicle.VIN),
		nullIfEmpty(vehicle.Year),
		nullIfEmpty(vehicle.Make),
		nullIfEmpty(vehicle.Model),
		nullIfEmpty(vehicle.Mileage),
		nullIfEmpty(vehicle.Price),
		nullIfEmpty(vehicle.Drivetrain),
		nullIfEmpty(vehicle.Transmission),
		nullIfEmpty(vehicle.Motor),
		nullIfEmpty(vehicle.Description),
		picIDs,
		vehicle.Version,
		formatTime(vehicle.CreatedAt),
		formatTime(vehicle.UpdatedAt),
	)
	return err
}

// GetVehicle returns a vehicle by id, or nil when it does not exist.
func (s *Store) GetVehicle(ctx context.Context, id string) (*models.Vehicle, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?`, id)
	return scanVehicle(row)
}

// ListVehicles returns vehicles newest first.
func (s *Store) ListVehicles(ctx context.Context, limit, offset int) ([]models.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, max(offset, 0))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vehicles := []models.Vehicle{}
	for rows.Next() {
		vehicle, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		vehicles = append(vehicles, *vehicle)
	}
	return vehicles, rows.Err()
}

// UpdateVehicleFields sets scalar fields. pic_ids and version are untouched.
func (s *Store) UpdateVehicleFields(ctx context.Context, id string, fields map[string]string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	for name := range fields {
		if _, ok := vehicleFieldColumns[name]; !ok {
			return fmt.Errorf("unknown vehicle field: %s", name)
		}
	}

	set := []string{}
	args := []any{}
	for _, name := range models.VehicleFieldNames {
		value, ok := fields[name]
		if !ok {
			continue
		}
		set = append(set, name+" = ?")
		args = append(args, nullIfEmpty(value))
	}

	set = append(set, "updated_at = ?")
	args = append(args, formatTime(time.Now().UTC()))
	args = append(args, id)

	query := fmt.Sprintf("UPDATE vehicles SET %s WHERE id = ?", strings.Join(set, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteVehicle removes the record only; referenced objects are left alone.
func (s *Store) DeleteVehicle(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM vehicles WHERE id = ?", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVehicle(scanner rowScanner) (*models.Vehicle, error) {
	var (
		vehicle                                 models.Vehicle
		vin, year, maker, model, mileage, price sql.NullString
		drivetrain, transmission, motor, descr  sql.NullString
		picIDs, createdAt, updatedAt            string
	)
	err := scanner.Scan(
		&vehicle.ID,
		&vin, &year, &maker, &model, &mileage, &price,
		&drivetrain, &transmission, &motor, &descr,
		&picIDs, &vehicle.Version, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	vehicle.VIN = vin.String
	vehicle.Year = year.String
	vehicle.Make = maker.String
	vehicle.Model = model.String
	vehicle.Mileage = mileage.String
	vehicle.Price = price.String
	vehicle.Drivetrain = drivetrain.String
	vehicle.Transmission = transmission.String
	vehicle.Motor = motor.String
	vehicle.Description = descr.String

	if vehicle.PicIDs, err = decodePicIDs(picIDs); err != nil {
		return nil, fmt.Errorf("vehicle %s: %w", vehicle.ID, err)
	}
	if vehicle.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if vehicle.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &vehicle, nil
}
