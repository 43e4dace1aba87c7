package chat

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrRecordingActive segnala che una registrazione è già in corso;
	// il controllo va disabilitato, non accodato
	ErrRecordingActive = errors.New("registrazione già in corso")
	// ErrNoRecording segnala che non c'è alcuna registrazione da fermare
	ErrNoRecording = errors.New("nessuna registrazione in corso")
	// ErrRecordingTooLong segnala che la clip ha superato la durata
	// massima e non verrà caricata
	ErrRecordingTooLong = errors.New("registrazione troppo lunga")
)

// Recorder tiene traccia di una registrazione audio alla volta. La
// durata mostrata è il tempo trascorso dall'avvio, in secondi interi,
// misurato sull'orologio di sistema.
type Recorder struct {
	maxSeconds int
	now        func() time.Time

	mu      sync.Mutex
	active  bool
	started time.Time
}

// NewRecorder crea un registratore con la durata massima indicata
// (0 = nessun limite)
func NewRecorder(maxSeconds int) *Recorder {
	return &Recorder{
		maxSeconds: maxSeconds,
		now:        time.Now,
	}
}

// Start avvia una nuova registrazione
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return ErrRecordingActive
	}
	r.active = true
	r.started = r.now()
	return nil
}

// Active segnala se una registrazione è in corso
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Elapsed restituisce i secondi trascorsi dall'avvio, per il display
func (r *Recorder) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return 0
	}
	return int(r.now().Sub(r.started) / time.Second)
}

// Stop ferma la registrazione e restituisce la durata in secondi
// interi. Oltre la durata massima la clip viene scartata.
func (r *Recorder) Stop() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return 0, ErrNoRecording
	}
	r.active = false

	seconds := int(r.now().Sub(r.started) / time.Second)
	if r.maxSeconds > 0 && seconds > r.maxSeconds {
		return 0, ErrRecordingTooLong
	}
	return seconds, nil
}

// Cancel interrompe la registrazione senza produrre nulla
func (r *Recorder) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
}
