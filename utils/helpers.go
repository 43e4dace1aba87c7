package utils

import (
	"fmt"
	"strings"
	"time"
)

// SanitizePathComponent sanitizza una stringa per l'uso nei percorsi dei file
func SanitizePathComponent(s string) string {
	// Rimuovi caratteri non sicuri per i percorsi dei file
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, "*", "_")
	s = strings.ReplaceAll(s, "?", "_")
	s = strings.ReplaceAll(s, "\"", "_")
	s = strings.ReplaceAll(s, "<", "_")
	s = strings.ReplaceAll(s, ">", "_")
	s = strings.ReplaceAll(s, "|", "_")
	return s
}

// GetAudioExtension restituisce l'estensione del file audio in base al tipo MIME
func GetAudioExtension(mimetype string) string {
	switch mimetype {
	case "audio/ogg":
		return "ogg"
	case "audio/mp4":
		return "m4a"
	case "audio/wav":
		return "wav"
	case "audio/mpeg":
		return "mp3"
	case "audio/webm":
		return "webm"
	default:
		return "audio"
	}
}

var shortMonths = []string{
	"gen", "feb", "mar", "apr", "mag", "giu",
	"lug", "ago", "set", "ott", "nov", "dic",
}

// FormatMessageDate formatta la data di un messaggio per la lista delle
// chat: ora se di oggi, "Ieri", data corta se dell'anno corrente, data
// completa altrimenti
func FormatMessageDate(t time.Time) string {
	now := time.Now()
	yesterday := now.AddDate(0, 0, -1)

	sameDay := func(a, b time.Time) bool {
		return a.Year() == b.Year() && a.YearDay() == b.YearDay()
	}

	if sameDay(t, now) {
		return t.Format("15:04")
	}
	if sameDay(t, yesterday) {
		return "Ieri"
	}
	if t.Year() == now.Year() {
		return fmt.Sprintf("%d %s", t.Day(), shortMonths[t.Month()-1])
	}
	return fmt.Sprintf("%d %s %d", t.Day(), shortMonths[t.Month()-1], t.Year())
}

// FormatAudioDuration formatta la durata di una clip audio come m:ss
func FormatAudioDuration(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
