package models

import (
	"sort"
	"time"
)

// Vehicle is a lot vehicle with its ordered picture ids.
type Vehicle struct {
	ID           string    `json:"id"`
	VIN          string    `json:"vin,omitempty"`
	Year         string    `json:"year,omitempty"`
	Make         string    `json:"make,omitempty"`
	Model        string    `json:"model,omitempty"`
	Mileage      string    `json:"mileage,omitempty"`
	Price        string    `json:"price,omitempty"`
	Drivetrain   string    `json:"drivetrain,omitempty"`
	Transmission string    `json:"transmission,omitempty"`
	Motor        string    `json:"motor,omitempty"`
	Description  string    `json:"description,omitempty"`
	PicIDs       []string  `json:"pic_ids"`
	Version      int64     `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AssetGroup is a named set of pictures not tied to a vehicle.
type AssetGroup struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	PicIDs    []string  `json:"pic_ids"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ApplyFields copies known scalar fields from values into v and returns the
// sorted names it did not recognize.
func (v *Vehicle) ApplyFields(values map[string]string) []string {
	var unknown []string
	for key, value := range values {
		if dst := v.field(key); dst != nil {
			*dst = value
			continue
		}
		unknown = append(unknown, key)
	}
	sort.Strings(unknown)
	return unknown
}

// Fields returns the scalar fields keyed by form name.
func (v *Vehicle) Fields() map[string]string {
	out := make(map[string]string, len(VehicleFieldNames))
	for _, name := range VehicleFieldNames {
		out[name] = *v.field(name)
	}
	return out
}

func (v *Vehicle) field(name string) *string {
	switch name {
	case "vin":
		return &v.VIN
	case "year":
		return &v.Year
	case "make":
		return &v.Make
	case "model":
		return &v.Model
	case "mileage":
		return &v.Mileage
	case "price":
		return &v.Price
	case "drivetrain":
		return &v.Drivetrain
	case "transmission":
		return &v.Transmission
	case "motor":
		return &v.Motor
	case "description":
		return &v.Description
	default:
		return nil
	}
}
