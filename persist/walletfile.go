package persist

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"os"

	"golang.org/x/crypto/twofish"

	"github.com/kryptokrona/kryptokrona-sub002/subwallets"
	"github.com/kryptokrona/kryptokrona-sub002/syncstatus"
)

// walletFileFormatVersion is bumped whenever the on-disk JSON document's
// shape changes incompatibly.
const walletFileFormatVersion = 1

var (
	// ErrWrongPassword is returned by Load when the password fails to
	// decrypt the file's authentication tag.
	ErrWrongPassword = errors.New("persist: wrong password")

	// ErrUnsupportedVersion is returned by Load when the decrypted
	// document declares a walletFileFormatVersion this build doesn't
	// understand.
	ErrUnsupportedVersion = errors.New("persist: unsupported wallet file format version")

	// ErrFileAlreadyOpen reports that another process already has the
	// wallet file open. This package takes no file lock, and none of its
	// functions return it.
	ErrFileAlreadyOpen = errors.New("persist: wallet file already open by another process")
)

// document is the wallet file's JSON shape: top-level keys
// walletFileFormatVersion, subWallets, and walletSynchronizer.
type document struct {
	WalletFileFormatVersion int                 `json:"walletFileFormatVersion"`
	SubWallets              subwallets.Snapshot `json:"subWallets"`
	WalletSynchronizer      syncstatus.Status   `json:"walletSynchronizer"`
}

// WalletFile is the in-memory form of a loaded or about-to-be-saved
// wallet document.
type WalletFile struct {
	SubWallets         subwallets.Snapshot
	WalletSynchronizer syncstatus.Status
}

// deriveKey turns a user password into a fixed-size twofish key with a
// single hash pass. SHA-256 fits twofish's 32-byte key size exactly, so
// no separate KDF/stretching pass is introduced here.
func deriveKey(password string) [32]byte {
	return sha256.Sum256([]byte(password))
}

// Save encrypts wf as the versioned wallet document and writes it
// atomically (write to a temp file, then rename) so a crash mid-write
// never corrupts the existing file on disk.
func Save(path, password string, wf WalletFile) error {
	doc := document{
		WalletFileFormatVersion: walletFileFormatVersion,
		SubWallets:              wf.SubWallets,
		WalletSynchronizer:      wf.WalletSynchronizer,
	}
	plaintext, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("persist: marshaling wallet document: %w", err)
	}

	ciphertext, err := encrypt(password, plaintext)
	if err != nil {
		return fmt.Errorf("persist: encrypting wallet document: %w", err)
	}

	tmp := path + ".tmp"
	if err := ioutil.WriteFile(tmp, ciphertext, 0600); err != nil {
		return fmt.Errorf("persist: writing wallet file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("persist: committing wallet file: %w", err)
	}
	return nil
}

// Load decrypts and parses a wallet file written by Save.
func Load(path, password string) (WalletFile, error) {
	ciphertext, err := ioutil.ReadFile(path)
	if err != nil {
		return WalletFile{}, fmt.Errorf("persist: reading wallet file: %w", err)
	}

	plaintext, err := decrypt(password, ciphertext)
	if err != nil {
		return WalletFile{}, ErrWrongPassword
	}

	var doc document
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return WalletFile{}, fmt.Errorf("persist: parsing wallet document: %w", err)
	}
	if doc.WalletFileFormatVersion != walletFileFormatVersion {
		return WalletFile{}, ErrUnsupportedVersion
	}

	return WalletFile{SubWallets: doc.SubWallets, WalletSynchronizer: doc.WalletSynchronizer}, nil
}

// encrypt wraps plaintext in a twofish-GCM envelope: a random nonce
// followed by the sealed ciphertext, so Load can authenticate the
// password before trusting anything it decrypts.
func encrypt(password string, plaintext []byte) ([]byte, error) {
	key := deriveKey(password)
	block, err := twofish.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(password string, ciphertext []byte) ([]byte, error) {
	key := deriveKey(password)
	block, err := twofish.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("persist: wallet file too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}
