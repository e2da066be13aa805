package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/FlorianMaier/HausMarkt/app/models"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/cache"
	"github.com/FlorianMaier/HausMarkt/internal/pkg/database"
)

const (
	CacheKeyListingsTotal  = "statistics:listings:total"
	CacheKeyListingsActive = "statistics:listings:active"
	CacheKeyListingsDaily  = "statistics:listings:daily:%s" // Format with date YYYY-MM-DD
	CacheKeyUsers          = "statistics:users:total"
	CacheExpiration        = 30 * time.Minute
)

// StatisticsData holds the aggregate numbers shown on the start page
type StatisticsData struct {
	TodayListings  int
	ActiveListings int
	TotalUsers     int
	TotalListings  int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached numbers are stale
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cache when the interval has elapsed
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Failed to update statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next UpdateCacheIfNeeded to refresh
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache updates all statistics in the cache
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalListings int64
	if err := db.Model(&models.Listing{}).Count(&totalListings).Error; err != nil {
		log.Printf("Error counting total listings: %v", err)
		return err
	}

	var activeListings int64
	if err := db.Model(&models.Listing{}).Where("status = ?", models.ListingStatusActive).Count(&activeListings).Error; err != nil {
		log.Printf("Error counting active listings: %v", err)
		return err
	}

	today := time.Now().Format("2006-01-02")
	var todayListings int64
	if err := db.Model(&models.Listing{}).Where("DATE(created_at) = ?", today).Count(&todayListings).Error; err != nil {
		log.Printf("Error counting today's listings: %v", err)
		return err
	}

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting users: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyListingsTotal, strconv.FormatInt(totalListings, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyListingsActive, strconv.FormatInt(activeListings, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(fmt.Sprintf(CacheKeyListingsDaily, today), strconv.FormatInt(todayListings, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		return err
	}

	return nil
}

// GetStatistics reads the cached numbers, refreshing the cache when a key is
// missing. Failures degrade to zero values so the start page never breaks on
// a cold cache.
func GetStatistics() StatisticsData {
	UpdateCacheIfNeeded()

	data := StatisticsData{}
	data.TotalListings = readCachedInt(CacheKeyListingsTotal)
	data.ActiveListings = readCachedInt(CacheKeyListingsActive)
	data.TodayListings = readCachedInt(fmt.Sprintf(CacheKeyListingsDaily, time.Now().Format("2006-01-02")))
	data.TotalUsers = readCachedInt(CacheKeyUsers)

	return data
}

func readCachedInt(key string) int {
	value, err := cache.Get(key)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}
