package scan

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/pantry-scan/internal/pantry"
)

const (
	scanBucketName       = "scans"
	ingredientBucketName = "ingredients"
	shoppingBucketName   = "shopping"
)

// DB defines the interface for database operations
type DB interface {
	// SaveScan stores a scan together with the ingredients derived from it
	SaveScan(scan *Scan, ingredients []pantry.Ingredient) error

	// GetScan retrieves a scan by ID
	GetScan(id string) (*Scan, error)

	// ListScans returns all scans
	ListScans() ([]*Scan, error)

	// DeleteScan removes a scan and every ingredient derived from it
	DeleteScan(id string) error

	// SaveIngredient creates or replaces one ingredient
	SaveIngredient(ingredient *pantry.Ingredient) error

	// GetIngredient retrieves an ingredient by ID
	GetIngredient(id string) (*pantry.Ingredient, error)

	// ListIngredients returns all pantry ingredients
	ListIngredients() ([]pantry.Ingredient, error)

	// SaveShoppingItems creates or replaces shopping list entries
	SaveShoppingItems(items []pantry.ShoppingItem) error

	// GetShoppingItem retrieves a shopping list entry by ID
	GetShoppingItem(id string) (*pantry.ShoppingItem, error)

	// ListShoppingItems returns the whole shopping list
	ListShoppingItems() ([]pantry.ShoppingItem, error)

	// DeleteShoppingItems removes shopping list entries; unknown IDs are ignored
	DeleteShoppingItems(ids ...string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{scanBucketName, ingredientBucketName, shoppingBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveScan stores the scan and its ingredients in one transaction
func (b *BoltDB) SaveScan(scan *Scan, ingredients []pantry.Ingredient) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(scan)
		if err != nil {
			return fmt.Errorf("marshaling scan: %w", err)
		}
		if err := tx.Bucket([]byte(scanBucketName)).Put([]byte(scan.ID), data); err != nil {
			return err
		}

		bucket := tx.Bucket([]byte(ingredientBucketName))
		for i := range ingredients {
			if err := putIngredient(bucket, &ingredients[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetScan retrieves a scan by ID
func (b *BoltDB) GetScan(id string) (*Scan, error) {
	var scan *Scan
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(scanBucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("scan %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &scan)
	})
	if err != nil {
		return nil, err
	}
	return scan, nil
}

// ListScans returns all scans in key order
func (b *BoltDB) ListScans() ([]*Scan, error) {
	scans := make([]*Scan, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(scanBucketName)).ForEach(func(k, v []byte) error {
			var scan Scan
			if err := json.Unmarshal(v, &scan); err != nil {
				return fmt.Errorf("unmarshaling scan: %w", err)
			}
			scans = append(scans, &scan)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return scans, nil
}

// DeleteScan removes a scan and its ingredients
func (b *BoltDB) DeleteScan(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket([]byte(scanBucketName)).Delete([]byte(id)); err != nil {
			return err
		}

		bucket := tx.Bucket([]byte(ingredientBucketName))
		var stale [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var ing pantry.Ingredient
			if err := json.Unmarshal(v, &ing); err != nil {
				return fmt.Errorf("unmarshaling ingredient: %w", err)
			}
			if ing.ScanID == id {
				// keys must not be deleted while iterating
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveIngredient creates or replaces one ingredient
func (b *BoltDB) SaveIngredient(ingredient *pantry.Ingredient) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return putIngredient(tx.Bucket([]byte(ingredientBucketName)), ingredient)
	})
}

func putIngredient(bucket *bbolt.Bucket, ingredient *pantry.Ingredient) error {
	data, err := json.Marshal(ingredient)
	if err != nil {
		return fmt.Errorf("marshaling ingredient: %w", err)
	}
	return bucket.Put([]byte(ingredient.ID), data)
}

// GetIngredient retrieves an ingredient by ID
func (b *BoltDB) GetIngredient(id string) (*pantry.Ingredient, error) {
	var ingredient *pantry.Ingredient
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(ingredientBucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("ingredient %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &ingredient)
	})
	if err != nil {
		return nil, err
	}
	return ingredient, nil
}

// ListIngredients returns all pantry ingredients
func (b *BoltDB) ListIngredients() ([]pantry.Ingredient, error) {
	ingredients := make([]pantry.Ingredient, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(ingredientBucketName)).ForEach(func(k, v []byte) error {
			var ing pantry.Ingredient
			if err := json.Unmarshal(v, &ing); err != nil {
				return fmt.Errorf("unmarshaling ingredient: %w", err)
			}
			ingredients = append(ingredients, ing)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ingredients, nil
}

// SaveShoppingItems stores the entries in one transaction
func (b *BoltDB) SaveShoppingItems(items []pantry.ShoppingItem) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(shoppingBucketName))
		for _, item := range items {
			data, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("marshaling shopping item: %w", err)
			}
			if err := bucket.Put([]byte(item.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetShoppingItem retrieves a shopping list entry by ID
func (b *BoltDB) GetShoppingItem(id string) (*pantry.ShoppingItem, error) {
	var item *pantry.ShoppingItem
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(shoppingBucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("shopping item %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListShoppingItems returns the whole shopping list
func (b *BoltDB) ListShoppingItems() ([]pantry.ShoppingItem, error) {
	items := make([]pantry.ShoppingItem, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(shoppingBucketName)).ForEach(func(k, v []byte) error {
			var item pantry.ShoppingItem
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("unmarshaling shopping item: %w", err)
			}
			items = append(items, item)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// DeleteShoppingItems removes shopping list entries
func (b *BoltDB) DeleteShoppingItems(ids ...string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(shoppingBucketName))
		for _, id := range ids {
			if err := bucket.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
