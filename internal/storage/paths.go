package storage

import (
	"fmt"
	"time"
)

// Path layout is the read contract for downstream consumers; changing it
// breaks the GPT action client.

func RawArticlePath(source string, fetchedAt time.Time, id string) string {
	return fmt.Sprintf("news/raw/%s/%s/%s.json", source, fetchedAt.UTC().Format("20060102"), id)
}

func ClusterPath(createdAt time.Time, clusterID string) string {
	return fmt.Sprintf("news/clustered/%s/%s.json", createdAt.UTC().Format("20060102"), clusterID)
}

func RunLogPath(createdAt time.Time, requestID string) string {
	return fmt.Sprintf("logs/%s/%s.json", createdAt.UTC().Format("2006-01-02"), requestID)
}

func ActionPath(createdAt time.Time, requestID, endpoint string) string {
	return fmt.Sprintf("gpt/actions/%s/%s-%s.json", createdAt.UTC().Format("2006-01-02"), requestID, endpoint)
}

func MarketSnapshotPath(source, symbol string, fetchedAt time.Time) string {
	return fmt.Sprintf("market/%s/%s/%s/snapshot.json", source, symbol, fetchedAt.UTC().Format("2006010215"))
}

// CleanupPrefixes is the sweep scope of the TTL garbage collector.
func CleanupPrefixes() []string {
	return []string{"news/raw/", "news/clustered/", "market/", "logs/", "gpt/actions/"}
}
