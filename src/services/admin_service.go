package services

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/kabutax/backend/src/database"
	"github.com/username/kabutax/backend/src/logger"
	"github.com/username/kabutax/backend/src/model"
	"github.com/username/kabutax/backend/src/models"
)

const (
	ckAdminStats     = "admin_stats"
	ckAdminCustomers = "admin_customers"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type adminServiceImpl struct {
	reportCache *cache.Cache
}

func NewAdminService(reportCache *cache.Cache) AdminService {
	return &adminServiceImpl{reportCache: reportCache}
}

func (s *adminServiceImpl) GetStats() (models.Stats, error) {
	if cached, found := s.reportCache.Get(ckAdminStats); found {
		logger.L.Debug("Cache hit for admin stats")
		return cached.(models.Stats), nil
	}

	stats, err := model.GetStats(database.DB)
	if err != nil {
		return models.Stats{}, fmt.Errorf("error computing stats: %w", err)
	}
	s.reportCache.Set(ckAdminStats, stats, DefaultCacheExpiration)
	return stats, nil
}

func (s *adminServiceImpl) GetCustomers() ([]models.Customer, error) {
	if cached, found := s.reportCache.Get(ckAdminCustomers); found {
		logger.L.Debug("Cache hit for admin customers")
		return cached.([]models.Customer), nil
	}

	customers, err := model.GetCustomers(database.DB)
	if err != nil {
		return nil, fmt.Errorf("error listing customers: %w", err)
	}
	s.reportCache.Set(ckAdminCustomers, customers, DefaultCacheExpiration)
	return customers, nil
}

func (s *adminServiceImpl) GetCustomerSubmissions(email string) ([]models.Submission, error) {
	subs, err := model.GetSubmissionsByEmail(database.DB, email)
	if err != nil {
		return nil, fmt.Errorf("error listing submissions for %s: %w", email, err)
	}
	return subs, nil
}

func (s *adminServiceImpl) DeleteCustomer(email string) (int64, error) {
	deleted, err := model.DeleteCustomer(database.DB, email)
	if err != nil {
		return 0, err
	}
	s.InvalidateCache()
	logger.L.Info("Deleted customer data", "email", email, "submissionsDeleted", deleted)
	return deleted, nil
}

// InvalidateCache clears the admin report caches, forcing a rebuild on the
// next request.
func (s *adminServiceImpl) InvalidateCache() {
	s.reportCache.Delete(ckAdminStats)
	s.reportCache.Delete(ckAdminCustomers)
	logger.L.Debug("Invalidated admin report caches")
}
