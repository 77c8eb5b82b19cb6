package store

import (
	"time"

	"podcache/internal/models"
)

// EpisodeStoreInterface is the durable key-value store holding one record
// per downloaded episode. Put, Touch, Delete and Clear are each atomic;
// absent keys are expected conditions, not errors.
type EpisodeStoreInterface interface {
	Has(id int64) (bool, error)
	Get(id int64) (*models.StoredEpisode, error)
	GetMeta(id int64) (*models.EpisodeMeta, error)
	Put(ep *models.StoredEpisode) error
	Touch(id int64, at time.Time) error
	Delete(id int64) error
	List() ([]models.EpisodeMeta, error)
	Clear() error
	UsedBytes() int64
	Count() int
	RestoreIndex() error
	Close() error
}
