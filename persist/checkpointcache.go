package persist

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kryptokrona/kryptokrona-sub002/crypto"
	"github.com/kryptokrona/kryptokrona-sub002/node"
	"github.com/kryptokrona/kryptokrona-sub002/syncstatus"
)

// cacheHeader/cacheVersion identify the file and its schema, checked on
// open so a foreign or stale bolt file is never mistaken for ours.
const (
	cacheHeader  = "kryptokrona wallet checkpoint cache"
	cacheVersion = "1.0"
)

// ErrCacheCorrupt is returned by OpenCheckpointCache when the file exists
// but its header doesn't match, so the caller knows to discard and
// rebuild it rather than trust stale or foreign data.
var ErrCacheCorrupt = errors.New("persist: checkpoint cache header mismatch")

var (
	metaBucket        = []byte("Metadata")
	checkpointsBucket = []byte("Checkpoints")
	decoyBucket       = []byte("DecoyOutputs")
)

// CheckpointCache is a small, non-authoritative embedded store that
// mirrors the WalletSynchronizer's most recent checkpoint hashes and the
// last getRandomOutputs response seen per amount, so a short-lived
// restart can warm-start without re-deriving either from scratch.
// Never consulted for correctness: every read here
// is a hint that is reconciled against the node in the same way a cold
// start would be.
type CheckpointCache struct {
	db *bolt.DB
}

// OpenCheckpointCache opens (creating if necessary) a cache file at path.
func OpenCheckpointCache(path string) (*CheckpointCache, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}

	c := &CheckpointCache{db: db}
	if err := c.checkOrWriteHeader(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *CheckpointCache) checkOrWriteHeader() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		header := bucket.Get([]byte("Header"))
		if header == nil {
			if err := bucket.Put([]byte("Header"), []byte(cacheHeader)); err != nil {
				return err
			}
			return bucket.Put([]byte("Version"), []byte(cacheVersion))
		}
		if string(header) != cacheHeader || string(bucket.Get([]byte("Version"))) != cacheVersion {
			return ErrCacheCorrupt
		}
		return nil
	})
}

// Close releases the underlying file.
func (c *CheckpointCache) Close() error { return c.db.Close() }

// StoreCheckpoints overwrites the cached checkpoint list with pairs,
// called by WalletBackend whenever it saves or reconciles the wallet
// (syncstatus itself has no disk dependency of its own).
func (c *CheckpointCache) StoreCheckpoints(pairs []syncstatus.HeightHash) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		// Bolt has no bucket-clear primitive; drop and recreate so a
		// shorter list doesn't leave stale trailing entries behind.
		if tx.Bucket(checkpointsBucket) != nil {
			if err := tx.DeleteBucket(checkpointsBucket); err != nil {
				return err
			}
		}
		bucket, err := tx.CreateBucket(checkpointsBucket)
		if err != nil {
			return err
		}
		for _, p := range pairs {
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, p.Height)
			if err := bucket.Put(key, p.Hash[:]); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadCheckpoints returns the cached checkpoint pairs, oldest first.
func (c *CheckpointCache) LoadCheckpoints() ([]syncstatus.HeightHash, error) {
	var out []syncstatus.HeightHash
	err := c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(checkpointsBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var hash crypto.Hash
			copy(hash[:], v)
			out = append(out, syncstatus.HeightHash{
				Height: binary.BigEndian.Uint64(k),
				Hash:   hash,
			})
			return nil
		})
	})
	return out, err
}

// StoreDecoyOutputs caches the most recent getRandomOutputs response for
// one amount, keyed by the amount itself. The transaction constructor
// reads it back only when its own getRandomOutputs request to the node
// fails.
func (c *CheckpointCache) StoreDecoyOutputs(amount uint64, outputs []node.RandomOutput) error {
	payload, err := json.Marshal(outputs)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(decoyBucket)
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, amount)
		return bucket.Put(key, payload)
	})
}

// LoadDecoyOutputs returns the cached decoy set for amount, if any.
func (c *CheckpointCache) LoadDecoyOutputs(amount uint64) ([]node.RandomOutput, bool, error) {
	var outputs []node.RandomOutput
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(decoyBucket)
		if bucket == nil {
			return nil
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, amount)
		payload := bucket.Get(key)
		if payload == nil {
			return nil
		}
		found = true
		return json.Unmarshal(payload, &outputs)
	})
	return outputs, found, err
}
