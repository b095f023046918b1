package domain

import "time"

type AgentStatus string

const (
	AgentOnline  AgentStatus = "online"
	AgentOffline AgentStatus = "offline"
)

// PaymentTerms is an agent's advertised price per consultation.
type PaymentTerms struct {
	Amount int64  `json:"amount"`
	Unit   string `json:"unit"`
}

// AgentRecord is one row of the directory. AgentID is the primary key;
// RegisteredAt survives re-registration, LastHeartbeat does not.
type AgentRecord struct {
	AgentID        string          `json:"agent_id"`
	DisplayName    string          `json:"display_name"`
	ConnectionKey  string          `json:"connection_key"`
	ExpertiseIndex *ExpertiseIndex `json:"expertise_index,omitempty"`
	Payment        *PaymentTerms   `json:"payment,omitempty"`
	Status         AgentStatus     `json:"status"`
	RegisteredAt   time.Time       `json:"registered_at"`
	LastHeartbeat  time.Time       `json:"last_heartbeat"`
}

// AgentProfile is the caller-supplied subset of an AgentRecord on
// register. Optional fields are pointers: absence is a first-class state.
type AgentProfile struct {
	AgentID        string          `json:"agent_id"`
	DisplayName    string          `json:"display_name"`
	ConnectionKey  string          `json:"connection_key"`
	ExpertiseIndex *ExpertiseIndex `json:"expertise_index,omitempty"`
	Payment        *PaymentTerms   `json:"payment,omitempty"`
}
