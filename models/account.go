package models

// Account rappresenta un utente del servizio (risultato di ricerca o
// profilo proprio)
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// ProfileUpdate contiene i campi modificabili del profilo
type ProfileUpdate struct {
	Username string `json:"username,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}
