package models

import (
	"database/sql/driver"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSON wraps datatypes.JSON so the column type can be chosen per driver.
// Document checklists and notification metadata are stored with it.
type JSON struct {
	datatypes.JSON
}

// NewJSON marshals v into a JSON column value
func NewJSON(v any) (JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return JSON{}, err
	}
	return JSON{JSON: datatypes.JSON(raw)}, nil
}

// IsEmpty reports whether the column holds no value or a JSON null
func (j JSON) IsEmpty() bool {
	return len(j.JSON) == 0 || string(j.JSON) == "null"
}

// Decode unmarshals the column value into v
func (j JSON) Decode(v any) error {
	return json.Unmarshal(j.JSON, v)
}

// Value promotes the embedded JSON's Value method
func (j JSON) Value() (driver.Value, error) {
	return j.JSON.Value()
}

// Scan reads a column value, NULL leaves the value empty
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		j.JSON = nil
		return nil
	}
	return j.JSON.Scan(value)
}

// GormDBDataType picks the column type per driver, sqlserver has no json type.
func (JSON) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "sqlite":
		return "JSON"
	case "postgres":
		return "JSONB"
	case "sqlserver", "mssql":
		return "NVARCHAR(MAX)"
	}
	return "TEXT"
}
