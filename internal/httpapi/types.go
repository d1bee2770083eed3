package httpapi

import "jobbot-engine/internal/domain"

type Status struct {
	State   string              `json:"state"`
	Pending bool                `json:"pending"`
	Last    *domain.CycleResult `json:"last,omitempty"`
}
