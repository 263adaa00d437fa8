package types

import (
	"database/sql/driver"

	"github.com/menusam/partner-billing/pkg/enums"
)

// Evidence is a partner-supplied pointer to material backing a dispute.
type Evidence struct {
	URL         string             `json:"url" validate:"required,url"`
	Type        enums.EvidenceType `json:"type" validate:"required"`
	Description string             `json:"description,omitempty" validate:"max=500"`
}

// EvidenceList stores dispute evidence inside a JSONB column.
type EvidenceList []Evidence

// Value stores nil as an empty array so the NOT NULL column stays valid.
func (e EvidenceList) Value() (driver.Value, error) {
	if e == nil {
		return "[]", nil
	}
	return jsonValue([]Evidence(e))
}

func (e *EvidenceList) Scan(value interface{}) error {
	decoded, err := scanJSON[[]Evidence](value)
	if err != nil {
		return err
	}
	if decoded == nil {
		decoded = []Evidence{}
	}
	*e = EvidenceList(decoded)
	return nil
}
