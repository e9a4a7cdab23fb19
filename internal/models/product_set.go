package models

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// ProductIDSet marshals a set of product ids into a jsonb column and back.
// Stored as a JSON array; membership checks decode on the fly, which is fine
// for the small provided-product sets subscriptions carry.
func ProductIDSet(ids []string) datatypes.JSON {
	if len(ids) == 0 {
		return datatypes.JSON([]byte("[]"))
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(b)
}

func productIDsFromJSON(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil
	}
	return ids
}
