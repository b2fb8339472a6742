package credstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	fileFormatVersion = 1
	pbkdf2Iterations  = 100000
	saltSize          = 16
)

// DefaultPassphrase is used when no passphrase is configured. It only keeps
// the file unreadable at a glance; set FISHERMAN_STORE_PASSPHRASE for real secrecy.
const DefaultPassphrase = "fisherman-local-credentials"

// entry is one encrypted value on disk
type entry struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// fileFormat is the on-disk JSON document
type fileFormat struct {
	Version int              `json:"version"`
	Salt    string           `json:"salt"`
	Entries map[string]entry `json:"entries"`
}

// FileStore keeps credentials in an AES-GCM encrypted JSON file.
// The file is re-read on every operation so concurrent CLI processes see each other's writes.
type FileStore struct {
	mu         sync.Mutex
	path       string
	passphrase []byte
}

// NewFileStore creates a store backed by path. The file is created on first write.
func NewFileStore(path, passphrase string) *FileStore {
	if passphrase == "" {
		passphrase = DefaultPassphrase
	}
	return &FileStore{
		path:       path,
		passphrase: []byte(passphrase),
	}
}

// Path returns the backing file path
func (f *FileStore) Path() string {
	return f.path
}

// Get implements Storage
func (f *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, key32, err := f.load()
	if err != nil {
		return "", false, err
	}

	e, ok := doc.Entries[key]
	if !ok {
		return "", false, nil
	}

	value, err := decrypt(key32, e.Value)
	if err != nil {
		return "", false, fmt.Errorf("%w: failed to decrypt %s: %v", ErrCorrupt, key, err)
	}

	return value, true, nil
}

// Set implements Storage
func (f *FileStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, key32, err := f.load()
	if err != nil {
		// An unreadable file is replaced rather than blocking a fresh login.
		doc, key32, err = f.fresh()
		if err != nil {
			return err
		}
	}

	encrypted, err := encrypt(key32, value)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", key, err)
	}

	doc.Entries[key] = entry{Value: encrypted, UpdatedAt: time.Now().UTC()}
	return f.save(doc)
}

// Remove implements Storage
func (f *FileStore) Remove(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, _, err := f.load()
	if err != nil {
		// Nothing trustworthy to keep.
		if rmErr := os.Remove(f.path); rmErr != nil && !os.IsNotExist(rmErr) {
			return rmErr
		}
		return nil
	}

	for _, k := range keys {
		delete(doc.Entries, k)
	}

	if len(doc.Entries) == 0 {
		if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	return f.save(doc)
}

// load reads the file, returning an empty document when it does not exist
func (f *FileStore) load() (*fileFormat, []byte, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return f.fresh()
	}
	if err != nil {
		return nil, nil, err
	}

	var doc fileFormat
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if doc.Version != fileFormatVersion {
		return nil, nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, doc.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(doc.Salt)
	if err != nil || len(salt) != saltSize {
		return nil, nil, fmt.Errorf("%w: invalid salt", ErrCorrupt)
	}
	if doc.Entries == nil {
		doc.Entries = make(map[string]entry)
	}

	return &doc, f.deriveKey(salt), nil
}

// fresh returns an empty document with a new random salt
func (f *FileStore) fresh() (*fileFormat, []byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, err
	}

	doc := &fileFormat{
		Version: fileFormatVersion,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Entries: make(map[string]entry),
	}
	return doc, f.deriveKey(salt), nil
}

func (f *FileStore) deriveKey(salt []byte) []byte {
	return pbkdf2.Key(f.passphrase, salt, pbkdf2Iterations, 32, sha256.New)
}

// save atomically rewrites the file with restricted permissions
func (f *FileStore) save(doc *fileFormat) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, f.path)
}

// encrypt encrypts a value using AES-GCM
func encrypt(key []byte, plaintext string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a value using AES-GCM
func decrypt(key []byte, ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
