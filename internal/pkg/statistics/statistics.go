package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/DataFrontierLabs/STLPrime/app/models"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/cache"
	"github.com/DataFrontierLabs/STLPrime/internal/pkg/database"
)

const (
	CacheKeyUsers        = "statistics:users:total"
	CacheKeyModelsTotal  = "statistics:models:total"
	CacheKeyModelsDaily  = "statistics:models:daily:%s" // Format with date YYYY-MM-DD
	CacheKeySalesTotal   = "statistics:sales:total"
	CacheKeyGrossRevenue = "statistics:revenue:gross"
	CacheExpiration      = 30 * time.Minute
)

// StatisticsData holds the aggregate numbers shown on the landing page and
// the admin dashboard.
type StatisticsData struct {
	TotalUsers   int
	TotalModels  int
	TodayModels  int
	TotalSales   int
	GrossRevenue float64
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached aggregates are stale.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the statistics cache when it is stale.
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next read to refresh the cache.
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache recomputes all aggregates and stores them in the cache.
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	var totalModels int64
	if err := db.Model(&models.Model{}).Count(&totalModels).Error; err != nil {
		log.Printf("Error counting total models: %v", err)
		return err
	}

	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	var todayModels int64
	if err := db.Model(&models.Model{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&todayModels).Error; err != nil {
		log.Printf("Error counting today's models: %v", err)
		return err
	}

	var totalSales int64
	if err := db.Model(&models.Purchase{}).Count(&totalSales).Error; err != nil {
		log.Printf("Error counting sales: %v", err)
		return err
	}

	var grossRevenue float64
	if err := db.Model(&models.Purchase{}).
		Select("COALESCE(SUM(amount_paid), 0)").Row().Scan(&grossRevenue); err != nil {
		log.Printf("Error summing revenue: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyModelsTotal, strconv.FormatInt(totalModels, 10), CacheExpiration); err != nil {
		return err
	}
	dailyKey := fmt.Sprintf(CacheKeyModelsDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todayModels, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeySalesTotal, strconv.FormatInt(totalSales, 10), CacheExpiration); err != nil {
		return err
	}
	if err := cache.Set(CacheKeyGrossRevenue, strconv.FormatFloat(grossRevenue, 'f', 2, 64), CacheExpiration); err != nil {
		return err
	}

	log.Printf("Statistics updated in cache: Users: %d, Models: %d, Today's Models: %d, Sales: %d, Revenue: %.2f",
		totalUsers, totalModels, todayModels, totalSales, grossRevenue)

	return nil
}

// GetTotalUsers returns the total number of users from cache or database.
func GetTotalUsers() int {
	return getCachedInt(CacheKeyUsers, func() (int64, error) {
		var count int64
		err := database.GetDB().Model(&models.User{}).Count(&count).Error
		return count, err
	})
}

// cached integer read with database fallback
func getCachedInt(key string, fallback func() (int64, error)) int {
	val, err := cache.Get(key)
	if err == nil {
		if count, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			return int(count)
		}
	}

	count, err := fallback()
	if err != nil {
		log.Printf("Error computing statistic %s: %v", key, err)
		return 0
	}
	if err := cache.Set(key, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
		log.Printf("Error caching statistic %s: %v", key, err)
	}
	return int(count)
}

// GetTotalModels returns the total number of models from cache or database.
func GetTotalModels() int {
	return getCachedInt(CacheKeyModelsTotal, func() (int64, error) {
		var count int64
		err := database.GetDB().Model(&models.Model{}).Count(&count).Error
		return count, err
	})
}

// GetTodayModels returns the number of models uploaded today.
func GetTodayModels() int {
	today := time.Now().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeyModelsDaily, today)

	return getCachedInt(dailyKey, func() (int64, error) {
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)
		var count int64
		err := database.GetDB().Model(&models.Model{}).
			Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&count).Error
		return count, err
	})
}

// GetTotalSales returns the total number of purchases.
func GetTotalSales() int {
	return getCachedInt(CacheKeySalesTotal, func() (int64, error) {
		var count int64
		err := database.GetDB().Model(&models.Purchase{}).Count(&count).Error
		return count, err
	})
}

// GetGrossRevenue returns the summed purchase revenue from cache or database.
func GetGrossRevenue() float64 {
	val, err := cache.Get(CacheKeyGrossRevenue)
	if err == nil {
		if revenue, perr := strconv.ParseFloat(val, 64); perr == nil {
			return revenue
		}
	}

	var revenue float64
	if err := database.GetDB().Model(&models.Purchase{}).
		Select("COALESCE(SUM(amount_paid), 0)").Row().Scan(&revenue); err != nil {
		log.Printf("Error summing revenue: %v", err)
		return 0
	}
	if err := cache.Set(CacheKeyGrossRevenue, strconv.FormatFloat(revenue, 'f', 2, 64), CacheExpiration); err != nil {
		log.Printf("Error caching revenue: %v", err)
	}
	return revenue
}

// GetStatisticsData returns all statistics as one structure.
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TotalUsers:   GetTotalUsers(),
		TotalModels:  GetTotalModels(),
		TodayModels:  GetTodayModels(),
		TotalSales:   GetTotalSales(),
		GrossRevenue: GetGrossRevenue(),
	}
}
