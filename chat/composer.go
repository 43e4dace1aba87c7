package chat

import (
	"fmt"
	"strings"

	"chat-client/models"
	"chat-client/upload"
	"chat-client/utils"
)

// Uploader astrae il collaboratore esterno di caricamento file
type Uploader interface {
	Upload(data []byte, category, filename string) (string, error)
}

// Composer trasforma l'input dell'utente (testo digitato, immagine
// scelta, clip audio registrata) in bozze pronte per l'invio
type Composer struct {
	chatID   string
	uploader Uploader
	recorder *Recorder
}

// NewComposer crea il composer per la conversazione indicata
func NewComposer(chatID string, uploader Uploader, maxRecordSeconds int) *Composer {
	return &Composer{
		chatID:   chatID,
		uploader: uploader,
		recorder: NewRecorder(maxRecordSeconds),
	}
}

// ComposeText prepara una bozza testuale. Il testo vuoto dopo il trim
// non produce nulla: nessun invio e nessun errore.
func (c *Composer) ComposeText(text string) (*models.Draft, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	return &models.Draft{
		ChatID:  c.chatID,
		Type:    models.TypeText,
		Content: text,
	}, true
}

// ComposeImage carica l'immagine e prepara la bozza con l'URL
// restituito. Se il caricamento fallisce non si invia nulla e l'errore
// è recuperabile.
func (c *Composer) ComposeImage(data []byte, filename string) (*models.Draft, error) {
	url, err := c.uploader.Upload(data, upload.CategoryImage, filename)
	if err != nil {
		return nil, fmt.Errorf("errore nel caricamento dell'immagine: %v", err)
	}
	return &models.Draft{
		ChatID:  c.chatID,
		Type:    models.TypeImage,
		Content: url,
	}, nil
}

// StartRecording avvia la registrazione di una clip audio. Una sola
// registrazione può essere attiva alla volta.
func (c *Composer) StartRecording() error {
	return c.recorder.Start()
}

// Recording segnala se una registrazione è in corso
func (c *Composer) Recording() bool {
	return c.recorder.Active()
}

// RecordingSeconds restituisce i secondi trascorsi dall'avvio della
// registrazione, per il display
func (c *Composer) RecordingSeconds() int {
	return c.recorder.Elapsed()
}

// StopRecording ferma la registrazione, carica la clip codificata e
// prepara la bozza audio con l'URL e la durata in secondi. Se il
// caricamento fallisce la clip viene scartata.
func (c *Composer) StopRecording(data []byte, mimetype string) (*models.Draft, error) {
	seconds, err := c.recorder.Stop()
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("clip.%s", utils.GetAudioExtension(mimetype))
	url, err := c.uploader.Upload(data, upload.CategoryAudio, filename)
	if err != nil {
		return nil, fmt.Errorf("errore nel caricamento dell'audio: %v", err)
	}

	return &models.Draft{
		ChatID:        c.chatID,
		Type:          models.TypeAudio,
		Content:       url,
		AudioDuration: seconds,
	}, nil
}

// CancelRecording scarta la registrazione in corso
func (c *Composer) CancelRecording() {
	c.recorder.Cancel()
}
