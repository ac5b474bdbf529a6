package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/supplyhub/backend/internal/core/ports"
	"github.com/supplyhub/backend/internal/domain"
	"github.com/supplyhub/backend/internal/infrastructure/logger"
)

const (
	settingCategoryUpload = "upload"

	SettingUploadConcurrency  = "upload_concurrency_limit"
	SettingUploadMaxBytes     = "upload_max_bytes"
	SettingUploadAllowedTypes = "upload_allowed_types"
)

// Bounds for runtime overrides of the upload policy.
const (
	maxConcurrencyLimit = 64
	minMaxBytes         = 1
)

// SystemSettingService stores the runtime overrides of the upload policy.
type SystemSettingService struct {
	repo        ports.SystemSettingRepository
	logger      *logger.Logger
	mu          sync.Mutex
	locks       map[string]*sync.Mutex
	enableLocks bool
}

func NewSystemSettingService(repo ports.SystemSettingRepository, logger *logger.Logger, enableLocks bool) *SystemSettingService {
	return &SystemSettingService{
		repo:        repo,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
		enableLocks: enableLocks,
	}
}

func (s *SystemSettingService) lockKeys(keys ...string) func() {
	if !s.enableLocks || len(keys) == 0 {
		return func() {}
	}
	sort.Strings(keys)
	s.mu.Lock()
	acquired := make([]*sync.Mutex, 0, len(keys))
	for _, k := range keys {
		m := s.locks[k]
		if m == nil {
			m = &sync.Mutex{}
			s.locks[k] = m
		}
		acquired = append(acquired, m)
	}
	s.mu.Unlock()
	for _, m := range acquired {
		m.Lock()
	}
	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}
}

// UploadPolicy overlays stored settings on defaults. A stored value that does
// not parse is logged and the default kept.
func (s *SystemSettingService) UploadPolicy(ctx context.Context, defaults domain.UploadPolicy) (domain.UploadPolicy, error) {
	settings, err := s.GetSettings(ctx)
	if err != nil {
		return defaults, err
	}

	policy := defaults
	if v, ok := settings[SettingUploadConcurrency]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= maxConcurrencyLimit {
			policy.ConcurrencyLimit = n
		} else {
			s.logger.Warnw("invalid_setting_ignored", "key", SettingUploadConcurrency, "value", v)
		}
	}
	if v, ok := settings[SettingUploadMaxBytes]; ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			policy.MaxBytes = n
		} else {
			s.logger.Warnw("invalid_setting_ignored", "key", SettingUploadMaxBytes, "value", v)
		}
	}
	if v, ok := settings[SettingUploadAllowedTypes]; ok {
		policy.AllowedTypes = splitTypes(v)
	}
	return policy, nil
}

// UpdateUploadPolicy validates and stores the fields set in update. Nothing is
// written when any field is invalid.
func (s *SystemSettingService) UpdateUploadPolicy(ctx context.Context, update domain.UploadPolicyUpdate) error {
	var settings []domain.SystemSetting

	if update.ConcurrencyLimit != nil {
		n := *update.ConcurrencyLimit
		if n < 1 || n > maxConcurrencyLimit {
			return fmt.Errorf("%w: concurrency_limit must be between 1 and %d", ErrSettingInvalid, maxConcurrencyLimit)
		}
		settings = append(settings, uploadSetting(SettingUploadConcurrency, strconv.Itoa(n), "int"))
	}
	if update.MaxBytes != nil {
		n := *update.MaxBytes
		if n != 0 && n < minMaxBytes {
			return fmt.Errorf("%w: max_bytes must be positive, or 0 for no limit", ErrSettingInvalid)
		}
		settings = append(settings, uploadSetting(SettingUploadMaxBytes, strconv.FormatInt(n, 10), "int"))
	}
	if update.AllowedTypes != nil {
		types := make([]string, 0, len(update.AllowedTypes))
		for _, t := range update.AllowedTypes {
			t = strings.ToLower(strings.TrimSpace(t))
			if t == "" {
				continue
			}
			if !strings.Contains(t, "/") {
				return fmt.Errorf("%w: %q is not a media type", ErrSettingInvalid, t)
			}
			types = append(types, t)
		}
		settings = append(settings, uploadSetting(SettingUploadAllowedTypes, strings.Join(types, ","), "list"))
	}
	if len(settings) == 0 {
		return nil
	}

	keys := make([]string, 0, len(settings))
	for _, st := range settings {
		keys = append(keys, "setting:"+st.Key)
	}
	unlock := s.lockKeys(keys...)
	defer unlock()

	if err := s.repo.SetMany(ctx, settings); err != nil {
		s.logger.Errorw("failed to update upload policy", "error", err)
		return err
	}
	s.logger.Infow("upload_policy_updated", "keys", keys)
	return nil
}

func (s *SystemSettingService) GetSettings(ctx context.Context) (map[string]string, error) {
	settings, err := s.repo.GetByCategory(ctx, settingCategoryUpload)
	if err != nil {
		s.logger.Errorw("failed to get settings by category", "category", settingCategoryUpload, "error", err)
		return nil, err
	}
	result := make(map[string]string, len(settings))
	for _, setting := range settings {
		result[setting.Key] = setting.Value
	}
	return result, nil
}

func uploadSetting(key, value, typ string) domain.SystemSetting {
	return domain.SystemSetting{Key: key, Value: value, Type: typ, Category: settingCategoryUpload}
}

func splitTypes(v string) []string {
	var out []string
	for _, t := range strings.Split(v, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
