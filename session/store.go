package session

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

var (
	sessionBucket = []byte("session")
	sessionKey    = []byte("current")
)

// Session rappresenta l'identità autenticata corrente
type Session struct {
	Token    string
	UserID   string
	Username string
}

// Store conserva la sessione su disco, così da sopravvivere ai riavvii.
// Viene svuotato completamente al logout.
type Store struct {
	db      *bbolt.DB
	mu      sync.RWMutex
	current *Session
}

// NewStore apre (o crea) il file di sessione e ricarica l'eventuale
// sessione salvata
func NewStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sessionBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	store := &Store{db: db}
	store.load()
	return store, nil
}

func (s *Store) load() {
	var sess Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(sessionBucket).Get(sessionKey)
		if data == nil {
			return fmt.Errorf("sessione non trovata")
		}
		return decodeBinary(data, &sess)
	})
	if err == nil {
		s.current = &sess
	}
}

// Save memorizza la sessione e la rende corrente
func (s *Store) Save(sess *Session) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		data, err := encodeToBinary(sess)
		if err != nil {
			return err
		}
		return tx.Bucket(sessionBucket).Put(sessionKey, data)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return nil
}

// Current restituisce una copia della sessione corrente, o nil se non
// autenticati. Le modifiche si fanno solo con Save.
func (s *Store) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	sess := *s.current
	return &sess
}

// Clear cancella la sessione (logout)
func (s *Store) Clear() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionBucket).Delete(sessionKey)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func encodeToBinary(data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(data)
	return buf.Bytes(), err
}

func decodeBinary(data []byte, target interface{}) error {
	buf := bytes.NewBuffer(data)
	return gob.NewDecoder(buf).Decode(target)
}
