package main

import (
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"chat-client/api"
	"chat-client/cache"
	"chat-client/chat"
	"chat-client/devserver"
	"chat-client/models"
	"chat-client/session"
	"chat-client/socket"
	"chat-client/upload"
	"chat-client/utils"
)

func main() {
	configPath := flag.String("config", "config.json", "percorso del file di configurazione")
	devMode := flag.Bool("dev", false, "avvia anche il backend fittizio locale")
	debug := flag.Bool("debug", false, "log di sviluppo")
	username := flag.String("username", "", "username per il login (se non c'è una sessione salvata)")
	password := flag.String("password", "", "password per il login")
	logout := flag.Bool("logout", false, "cancella la sessione salvata ed esce")
	flag.Parse()

	utils.InitLogger(*debug)

	config, err := utils.LoadConfig(*configPath)
	if err != nil {
		utils.Logger.Warnf("Configurazione non caricata (%v), uso i valori predefiniti", err)
		config = utils.DefaultConfig()
	}

	// Modalità sviluppo: backend fittizio in memoria sulla porta 3000
	if *devMode {
		go func() {
			server := devserver.New()
			if err := server.Router().Run(":3000"); err != nil {
				utils.Logger.Errorf("Errore nell'avvio del server di sviluppo: %v", err)
			}
		}()
		utils.Logger.Infof("Server di sviluppo avviato su http://localhost:3000")
	}

	// Sessione persistente
	store, err := session.NewStore(config.Storage.SessionPath)
	if err != nil {
		utils.Logger.Fatalf("Errore nell'apertura del file di sessione: %v", err)
	}
	defer store.Close()

	if *logout {
		if err := store.Clear(); err != nil {
			utils.Logger.Fatalf("Errore nella cancellazione della sessione: %v", err)
		}
		utils.Logger.Infof("Sessione cancellata")
		return
	}

	apiClient := api.NewClient(config.Server.BaseURL)
	uploader := upload.NewClient(config.Server.UploadURL)

	sess := store.Current()
	if sess != nil && session.TokenExpired(sess.Token) {
		utils.Logger.Infof("Token scaduto, nuova autenticazione necessaria")
		store.Clear()
		sess = nil
	}

	if sess == nil {
		if *username == "" || *password == "" {
			utils.Logger.Fatalf("Nessuna sessione salvata: servono -username e -password")
		}
		login, err := apiClient.Login(*username, *password)
		if err != nil {
			utils.Logger.Fatalf("%v", err)
		}
		userID := login.UserID
		if userID == "" {
			// In mancanza dell'id esplicito, prova dai claim del token
			userID, _ = session.UserIDFromToken(login.Token)
		}
		sess = &session.Session{Token: login.Token, UserID: userID, Username: *username}
		if err := store.Save(sess); err != nil {
			utils.Logger.Warnf("Sessione non salvata: %v", err)
		}
	}

	apiClient.SetToken(sess.Token)
	uploader.SetToken(sess.Token)

	// Cache locale, best effort
	cacheManager, err := cache.NewManager(config.Storage.CachePath)
	if err != nil {
		utils.Logger.Warnf("Cache locale non disponibile: %v", err)
		cacheManager = nil
	}

	// Lista delle chat, riscaldata dalla cache prima della rete
	chatList := chat.NewChatList(sess.UserID, apiClient)
	if cacheManager != nil {
		if cached, err := cacheManager.LoadChats(); err == nil {
			for _, ch := range cached {
				chatList.AddChat(ch)
			}
		}
	}
	if err := chatList.Load(); err != nil {
		// Lista vuota (o solo cache), non fatale
		utils.Logger.Warnf("%v", err)
	} else if cacheManager != nil {
		for _, ch := range chatList.Chats() {
			ch := ch
			if err := cacheManager.SaveChat(&ch); err != nil {
				utils.Logger.Debugf("Chat %s non salvata nella cache: %v", ch.ID, err)
			}
		}
	}

	// Canale di trasporto condiviso
	socketClient := socket.NewClient(config.Server.SocketURL, config.Socket)

	// Sottoscrizione globale: anteprime, non letti e cache si aggiornano
	// qualunque sia la conversazione aperta
	socketClient.On(socket.EventNewMessage, func(payload json.RawMessage) {
		var msg models.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			utils.Logger.Warnf("Messaggio non valido sul canale: %v", err)
			return
		}
		chatList.OnMessage(msg)
		if cacheManager != nil {
			if err := cacheManager.SaveMessage(&msg); err != nil {
				utils.Logger.Debugf("Messaggio %s non salvato nella cache: %v", msg.ID, err)
			}
		}
		utils.Logger.Infof("Nuovo messaggio da %s: %s", msg.SenderName, msg.Preview())
	})
	socketClient.On(socket.EventMessageError, func(payload json.RawMessage) {
		var failure models.MessageError
		if err := json.Unmarshal(payload, &failure); err != nil {
			return
		}
		utils.Logger.Warnf("Invio non riuscito: %q (%s)", failure.Content, failure.Reason)
	})

	if err := socketClient.Connect(sess.Token); err != nil {
		// Il client resta utilizzabile offline con la cache
		utils.Logger.Warnf("%v", err)
	}

	for _, ch := range chatList.Chats() {
		marker := " "
		if chatList.Unread(ch.ID) {
			marker = "*"
		}
		when := ""
		if !ch.LastMessage.CreatedAt.IsZero() {
			when = utils.FormatMessageDate(ch.LastMessage.CreatedAt)
		}
		utils.Logger.Infof("%s %s: %s %s", marker, ch.Name(sess.UserID), ch.LastMessage.Preview(), when)
	}

	// Gestisci chiusura corretta
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	utils.Logger.Infof("Disconnessione...")
	socketClient.Disconnect()
	if cacheManager != nil {
		cacheManager.Close()
	}
}
