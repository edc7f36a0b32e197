package models

// RecordKind identifies which owning record table a RecordRef points at.
type RecordKind string

const (
	RecordVehicle RecordKind = "vehicle"
	RecordAsset   RecordKind = "asset"
)

// RecordRef addresses one owning record.
type RecordRef struct {
	Kind RecordKind `json:"kind"`
	ID   string     `json:"id"`
}

func (r RecordRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

func VehicleRef(id string) RecordRef { return RecordRef{Kind: RecordVehicle, ID: id} }

func AssetRef(id string) RecordRef { return RecordRef{Kind: RecordAsset, ID: id} }

// VehicleFieldNames lists the scalar vehicle fields accepted from forms.
var VehicleFieldNames = []string{
	"vin",
	"year",
	"make",
	"model",
	"mileage",
	"price",
	"drivetrain",
	"transmission",
	"motor",
	"description",
}
