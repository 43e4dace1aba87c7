package models

// Draft è l'output del composer: un messaggio pronto per l'invio, con il
// contenuto già validato (testo non vuoto oppure URL del file caricato)
type Draft struct {
	ChatID        string
	Type          string
	Content       string
	AudioDuration int
}
