package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"chat-client/models"
)

// ErrChatExists segnala che esiste già una conversazione con gli stessi
// membri; il backend la restituisce al posto di crearne una nuova
var ErrChatExists = errors.New("la conversazione esiste già")

// Client è il client REST verso il backend
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient crea un nuovo client REST
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SetToken imposta il token di autenticazione per le richieste successive;
// una stringa vuota lo rimuove (logout)
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Struttura per la risposta di login
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// Login autentica l'utente e restituisce token e id
func (c *Client) Login(username, password string) (*LoginResponse, error) {
	body := map[string]string{"username": username, "password": password}
	var response LoginResponse
	if err := c.doJSON("POST", "/auth/login", body, &response); err != nil {
		return nil, fmt.Errorf("errore nel login: %v", err)
	}
	return &response, nil
}

// Register crea un nuovo account
func (c *Client) Register(username, password string) error {
	body := map[string]string{"username": username, "password": password}
	if err := c.doJSON("POST", "/auth/register", body, nil); err != nil {
		return fmt.Errorf("errore nella registrazione: %v", err)
	}
	return nil
}

// GetChats restituisce tutte le conversazioni dell'utente
func (c *Client) GetChats() ([]models.Chat, error) {
	var chats []models.Chat
	if err := c.doJSON("GET", "/chats", nil, &chats); err != nil {
		return nil, fmt.Errorf("errore nel caricamento delle chat: %v", err)
	}
	return chats, nil
}

// GetMessages restituisce la cronologia completa di una conversazione
func (c *Client) GetMessages(chatID string) ([]models.Message, error) {
	var messages []models.Message
	path := "/messages/" + url.PathEscape(chatID)
	if err := c.doJSON("GET", path, nil, &messages); err != nil {
		return nil, fmt.Errorf("errore nel caricamento dei messaggi: %v", err)
	}
	return messages, nil
}

// SearchUsers cerca gli account che corrispondono alla query
func (c *Client) SearchUsers(query string) ([]models.Account, error) {
	var accounts []models.Account
	path := "/users/search?q=" + url.QueryEscape(query)
	if err := c.doJSON("GET", path, nil, &accounts); err != nil {
		return nil, fmt.Errorf("errore nella ricerca degli utenti: %v", err)
	}
	return accounts, nil
}

// CreateChat crea una conversazione con i membri indicati. Se la
// conversazione esiste già, restituisce quella esistente insieme a
// ErrChatExists.
func (c *Client) CreateChat(memberIDs []string) (*models.Chat, error) {
	body := map[string][]string{"members": memberIDs}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	resp, err := c.do("POST", "/chats", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("errore nella creazione della chat: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		// Il backend restituisce la conversazione esistente nel corpo
		var conflict struct {
			Error string      `json:"error"`
			Chat  models.Chat `json:"chat"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&conflict); err != nil {
			return nil, ErrChatExists
		}
		return &conflict.Chat, ErrChatExists
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("errore nella creazione della chat: %s", readAPIError(resp))
	}

	var chat models.Chat
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("errore nella decodifica della risposta: %v", err)
	}
	return &chat, nil
}

// GetProfile restituisce il profilo dell'utente autenticato
func (c *Client) GetProfile() (*models.Account, error) {
	var account models.Account
	if err := c.doJSON("GET", "/profile", nil, &account); err != nil {
		return nil, fmt.Errorf("errore nel caricamento del profilo: %v", err)
	}
	return &account, nil
}

// UpdateProfile aggiorna i campi del profilo e restituisce la versione
// aggiornata
func (c *Client) UpdateProfile(update *models.ProfileUpdate) (*models.Account, error) {
	var account models.Account
	if err := c.doJSON("PUT", "/profile", update, &account); err != nil {
		return nil, fmt.Errorf("errore nell'aggiornamento del profilo: %v", err)
	}
	return &account, nil
}

// doJSON esegue una richiesta con corpo e risposta JSON
func (c *Client) doJSON(method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	resp, err := c.do(method, path, reader)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("risposta %d dal server: %s", resp.StatusCode, readAPIError(resp))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("errore nella decodifica della risposta: %v", err)
	}
	return nil
}

func (c *Client) do(method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.http.Do(req)
}

// readAPIError estrae il messaggio d'errore dal corpo della risposta
func readAPIError(resp *http.Response) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return resp.Status
}
