package upload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-client/utils"
)

// Categorie di caricamento supportate dal servizio di storage
const (
	CategoryAvatar = "avatars"
	CategoryImage  = "images"
	CategoryAudio  = "audios"
)

// Client carica file sul servizio di storage esterno e restituisce
// l'URL pubblico risultante
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient crea un nuovo client di caricamento
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			// I caricamenti possono essere grandi, timeout più ampio
			Timeout: 60 * time.Second,
		},
	}
}

// SetToken imposta il token di autenticazione per i caricamenti
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Upload invia i byte nella categoria indicata. Il nome remoto è un
// uuid che conserva l'estensione del file originale, così due
// caricamenti non collidono mai.
func (c *Client) Upload(data []byte, category, filename string) (string, error) {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	if ext == "" {
		ext = "bin"
	}
	remoteName := fmt.Sprintf("%s.%s", uuid.New().String(), utils.SanitizePathComponent(ext))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", remoteName)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.WriteField("category", category); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequest("POST", c.baseURL+"/upload", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("errore nel caricamento del file: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("errore nel caricamento del file: risposta %d", resp.StatusCode)
	}

	var response struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("errore nella decodifica della risposta: %v", err)
	}
	if response.URL == "" {
		return "", fmt.Errorf("nessun URL nella risposta del servizio di storage")
	}
	return response.URL, nil
}
