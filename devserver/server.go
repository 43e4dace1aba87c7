package devserver

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-client/models"
)

// Server è un backend fittizio in memoria che implementa il contratto
// REST e socket del servizio. Serve per lo sviluppo locale e per i test
// di integrazione del client; non è un backend di produzione.
type Server struct {
	secret []byte

	mu       sync.RWMutex
	users    map[string]*user              // per id
	byName   map[string]string             // username -> id
	chats    map[string]*models.Chat       // per id
	byKey    map[string]string             // chiave dei membri -> id chat
	messages map[string][]models.Message   // per chat

	wsMu  sync.Mutex
	rooms map[string]map[*websocket.Conn]bool
	conns map[*websocket.Conn]string
}

type user struct {
	ID       string
	Username string
	Password string
	Avatar   string
}

// New crea un server di sviluppo vuoto
func New() *Server {
	return &Server{
		secret:   []byte("dev-secret"),
		users:    make(map[string]*user),
		byName:   make(map[string]string),
		chats:    make(map[string]*models.Chat),
		byKey:    make(map[string]string),
		messages: make(map[string][]models.Message),
		rooms:    make(map[string]map[*websocket.Conn]bool),
		conns:    make(map[*websocket.Conn]string),
	}
}

// Router costruisce il router gin con tutte le rotte del contratto
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// Abilita CORS
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	router.POST("/auth/register", s.handleRegister)
	router.POST("/auth/login", s.handleLogin)

	authed := router.Group("/", s.authMiddleware)
	authed.GET("/chats", s.handleListChats)
	authed.POST("/chats", s.handleCreateChat)
	authed.GET("/messages/:chatId", s.handleListMessages)
	authed.GET("/users/search", s.handleSearchUsers)
	authed.GET("/profile", s.handleGetProfile)
	authed.PUT("/profile", s.handleUpdateProfile)
	authed.POST("/upload", s.handleUpload)

	router.GET("/socket", s.handleWebSocket)

	return router
}

// signToken genera il token di sessione per l'utente
func (s *Server) signToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// userIDFromToken verifica il token e restituisce l'id utente
func (s *Server) userIDFromToken(token string) (string, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("metodo di firma non valido")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("token non valido")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", fmt.Errorf("token non valido")
	}
	return sub, nil
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	// Il socket può passare il token come query string
	return c.Query("token")
}

func (s *Server) authMiddleware(c *gin.Context) {
	userID, err := s.userIDFromToken(bearerToken(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "non autenticato"})
		return
	}
	c.Set("userID", userID)
	c.Next()
}

func (s *Server) handleRegister(c *gin.Context) {
	var requestData struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Formato JSON non valido"})
		return
	}
	if requestData.Username == "" || requestData.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username e password obbligatori"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[requestData.Username]; exists {
		c.JSON(http.StatusConflict, gin.H{"error": "Username già in uso"})
		return
	}

	u := &user{
		ID:       uuid.New().String(),
		Username: requestData.Username,
		Password: requestData.Password,
	}
	s.users[u.ID] = u
	s.byName[u.Username] = u.ID

	c.JSON(http.StatusCreated, gin.H{"id": u.ID, "username": u.Username})
}

func (s *Server) handleLogin(c *gin.Context) {
	var requestData struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Formato JSON non valido"})
		return
	}

	s.mu.RLock()
	id, ok := s.byName[requestData.Username]
	var u *user
	if ok {
		u = s.users[id]
	}
	s.mu.RUnlock()

	if u == nil || u.Password != requestData.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Credenziali non valide"})
		return
	}

	token, err := s.signToken(u.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Errore nella firma del token: %v", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "userId": u.ID})
}

func (s *Server) handleListChats(c *gin.Context) {
	userID := c.GetString("userID")

	s.mu.RLock()
	defer s.mu.RUnlock()

	chatList := make([]models.Chat, 0)
	for _, chat := range s.chats {
		if !isMember(chat, userID) {
			continue
		}
		chatList = append(chatList, *chat)
	}

	// Ordina per ultimo messaggio più recente
	sort.Slice(chatList, func(i, j int) bool {
		if chatList[i].LastMessage.CreatedAt.IsZero() {
			return false
		}
		if chatList[j].LastMessage.CreatedAt.IsZero() {
			return true
		}
		return chatList[i].LastMessage.CreatedAt.After(chatList[j].LastMessage.CreatedAt)
	})

	c.JSON(http.StatusOK, chatList)
}

func (s *Server) handleCreateChat(c *gin.Context) {
	userID := c.GetString("userID")

	var requestData struct {
		Members []string `json:"members"`
	}
	if err := c.BindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Formato JSON non valido"})
		return
	}

	// Il creatore è sempre membro
	memberIDs := append([]string{}, requestData.Members...)
	found := false
	for _, id := range memberIDs {
		if id == userID {
			found = true
			break
		}
	}
	if !found {
		memberIDs = append(memberIDs, userID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var members []models.Member
	for _, id := range memberIDs {
		u, ok := s.users[id]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Utente %s non trovato", id)})
			return
		}
		members = append(members, models.Member{ID: u.ID, Username: u.Username, Avatar: u.Avatar})
	}

	// Una sola conversazione per insieme di membri
	key := membersKey(memberIDs)
	if existingID, ok := s.byKey[key]; ok {
		c.JSON(http.StatusConflict, gin.H{
			"error": "La conversazione esiste già",
			"chat":  s.chats[existingID],
		})
		return
	}

	chat := &models.Chat{
		ID:      uuid.New().String(),
		Members: members,
	}
	s.chats[chat.ID] = chat
	s.byKey[key] = chat.ID

	c.JSON(http.StatusCreated, chat)
}

func (s *Server) handleListMessages(c *gin.Context) {
	userID := c.GetString("userID")
	chatID := c.Param("chatId")

	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.chats[chatID]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat non trovata"})
		return
	}
	if !isMember(chat, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Non sei membro di questa chat"})
		return
	}

	messages := s.messages[chatID]
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, messages)
}

func (s *Server) handleSearchUsers(c *gin.Context) {
	userID := c.GetString("userID")
	query := strings.ToLower(c.Query("q"))

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]models.Account, 0)
	for _, u := range s.users {
		if u.ID == userID {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(u.Username), query) {
			continue
		}
		results = append(results, models.Account{ID: u.ID, Username: u.Username, Avatar: u.Avatar})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Username < results[j].Username
	})
	c.JSON(http.StatusOK, results)
}

func (s *Server) handleGetProfile(c *gin.Context) {
	userID := c.GetString("userID")

	s.mu.RLock()
	u := s.users[userID]
	s.mu.RUnlock()

	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Utente non trovato"})
		return
	}
	c.JSON(http.StatusOK, models.Account{ID: u.ID, Username: u.Username, Avatar: u.Avatar})
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	userID := c.GetString("userID")

	var update models.ProfileUpdate
	if err := c.BindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Formato JSON non valido"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.users[userID]
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Utente non trovato"})
		return
	}
	if update.Username != "" && update.Username != u.Username {
		if _, taken := s.byName[update.Username]; taken {
			c.JSON(http.StatusConflict, gin.H{"error": "Username già in uso"})
			return
		}
		delete(s.byName, u.Username)
		u.Username = update.Username
		s.byName[u.Username] = u.ID
	}
	if update.Avatar != "" {
		u.Avatar = update.Avatar
	}

	c.JSON(http.StatusOK, models.Account{ID: u.ID, Username: u.Username, Avatar: u.Avatar})
}

func (s *Server) handleUpload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nessun file nella richiesta"})
		return
	}
	category := c.PostForm("category")
	if category == "" {
		category = "misc"
	}

	// Il contenuto viene scartato: al client serve solo l'URL
	c.JSON(http.StatusOK, gin.H{
		"url": fmt.Sprintf("https://storage.dev.local/%s/%s", category, file.Filename),
	})
}

func isMember(chat *models.Chat, userID string) bool {
	for _, m := range chat.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// membersKey costruisce la chiave canonica dell'insieme dei membri
func membersKey(ids []string) string {
	sorted := append([]string{}, ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
