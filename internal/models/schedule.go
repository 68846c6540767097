package models

import "time"

// Responsible identifies who claimed a responsibility on a scheduled operation.
// UserID is "manual" when the name was typed in rather than tied to an account
// (loading can be assigned to someone without app access).
type Responsible struct {
	Nome      string `json:"nome"`
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"` // epoch millis of the claim
}

// ManualUserID marks a responsible entered as free text
const ManualUserID = "manual"

type Equipment struct {
	Tipo       string `json:"tipo"`
	Quantidade int    `json:"quantidade"`
}

type Container struct {
	Tipo       string  `json:"tipo"`
	Capacidade *string `json:"capacidade,omitempty"`
	Residuo    *string `json:"residuo,omitempty"`
	Quantidade int     `json:"quantidade"`
}

// ScheduleEntry is a scheduled equipment/container delivery or pickup.
// Wire field names follow the stored record shape (Portuguese).
type ScheduleEntry struct {
	Key                     string       `json:"key"`
	Cliente                 string       `json:"cliente"`
	Endereco                string       `json:"endereco"`
	DataEntrega             string       `json:"dataEntrega"` // ISO date (2006-01-02)
	Equipamentos            []Equipment  `json:"equipamentos"`
	Containers              []Container  `json:"containers"`
	Observacoes             string       `json:"observacoes,omitempty"`
	ResponsavelOperacao     *Responsible `json:"responsavelOperacao,omitempty"`
	ResponsavelCarregamento *Responsible `json:"responsavelCarregamento,omitempty"`

	// DeliveryDate is DataEntrega parsed at decode time, used for sorting and
	// temporal classification. Not serialized.
	DeliveryDate time.Time `json:"-"`
}

// HistoryEntry is a completed operation archived in the history collection.
type HistoryEntry struct {
	ScheduleEntry
	DataConclusao        string       `json:"dataConclusao"` // ISO datetime
	ResponsavelConclusao *Responsible `json:"responsavelConclusao"`
}

// CreateScheduleRequest represents the request body for scheduling a delivery
// (issued by the logistics-planning flow)
type CreateScheduleRequest struct {
	Cliente      string      `json:"cliente"`
	Endereco     string      `json:"endereco"`
	DataEntrega  string      `json:"dataEntrega"`
	Equipamentos []Equipment `json:"equipamentos"`
	Containers   []Container `json:"containers"`
	Observacoes  string      `json:"observacoes"`
}

// ClaimLoadingRequest carries the free-text name of the loading responsible
type ClaimLoadingRequest struct {
	Nome string `json:"nome"`
}
