package store

import (
	"podcache/internal/models"
	"podcache/internal/structures"
)

const mib = 1024 * 1024

// QuotaProviderInterface reports the storage budget allocation on demand.
type QuotaProviderInterface interface {
	Quota() models.StorageQuota
}

// BudgetQuota accounts usage against a configured byte budget. With no
// budget configured it returns the unknown-quota sentinel instead of
// failing, so callers can always treat the result as advisory.
type BudgetQuota struct {
	store      EpisodeStoreInterface
	totalBytes int64
}

func NewQuotaProvider(conf *structures.Config, episodeStore EpisodeStoreInterface) QuotaProviderInterface {
	var total int64
	if conf.Storage.MaxSizeMB > 0 {
		total = int64(conf.Storage.MaxSizeMB) * mib
	}
	return &BudgetQuota{store: episodeStore, totalBytes: total}
}

func (q *BudgetQuota) Quota() models.StorageQuota {
	used := q.store.UsedBytes()
	if q.totalBytes == 0 {
		return models.UnknownQuota(used)
	}
	available := q.totalBytes - used
	if available < 0 {
		available = 0
	}
	return models.StorageQuota{
		Used:      used,
		Total:     q.totalBytes,
		Available: available,
	}
}
