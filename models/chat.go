package models

import "strings"

// Member rappresenta un partecipante a una conversazione
type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// Chat represents a conversation between users
type Chat struct {
	ID          string   `json:"id"`
	Members     []Member `json:"members"`
	LastMessage Message  `json:"lastMessage"`
}

// Name restituisce il nome da mostrare per la chat: gli username degli
// altri membri, separati da virgola
func (c *Chat) Name(selfID string) string {
	var names []string
	for _, m := range c.Members {
		if m.ID != selfID {
			names = append(names, m.Username)
		}
	}
	if len(names) == 0 && len(c.Members) > 0 {
		// Chat con se stessi
		return c.Members[0].Username
	}
	return strings.Join(names, ", ")
}
