package journal

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// AttributeErrors maps an attribute key to the error returned when attaching it
type AttributeErrors map[string]string

func (a *AttributeErrors) Scan(value interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		*a = make(AttributeErrors)
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("Failed to unmarshal jsonb value: %v", value)
	}
	out := make(AttributeErrors)
	if err := json.Unmarshal(bytes, &out); err != nil {
		return err
	}
	*a = out
	return nil
}

func (a AttributeErrors) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

func (AttributeErrors) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "sqlite":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}
