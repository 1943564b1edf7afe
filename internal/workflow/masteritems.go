package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"consign-review-api/internal/cache"
	"consign-review-api/internal/model"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	log "github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	categoryTreeKey = "categories:tree"
)

// CatalogReader is the part of the platform client master-item resolution needs.
type CatalogReader interface {
	ListMasterItems(ctx context.Context, q model.MasterItemQuery) (*model.Page[model.MasterItem], error)
	CreateMasterItem(ctx context.Context, shopID string, in model.CreateMasterItemInput) (*model.MasterItem, error)
	GetCategoryTree(ctx context.Context) ([]model.Category, error)
}

// MasterItemsConfig holds cache lifetimes for catalog lookups.
type MasterItemsConfig struct {
	ListTTL     time.Duration
	CategoryTTL time.Duration
}

// MasterItems lists, caches and creates the master items a line item can be
// attached to. Lists are cached per shop under a generation stamp; creating an
// item replaces the stamp so the next list is fetched fresh.
type MasterItems struct {
	catalog  CatalogReader
	cache    cache.Cache
	cfg      MasterItemsConfig
	validate *validator.Validate
	logger   *log.Entry
}

// NewMasterItems creates the master-item resolution step.
func NewMasterItems(catalog CatalogReader, c cache.Cache, cfg MasterItemsConfig) *MasterItems {
	if cfg.ListTTL <= 0 {
		cfg.ListTTL = 5 * time.Minute
	}
	if cfg.CategoryTTL <= 0 {
		cfg.CategoryTTL = 30 * time.Minute
	}
	return &MasterItems{
		catalog:  catalog,
		cache:    c,
		cfg:      cfg,
		validate: newValidator(),
		logger:   log.WithField("component", "MasterItems"),
	}
}

func generationKey(shopID string) string {
	return "masteritems:" + shopID + ":gen"
}

func (m *MasterItems) generation(ctx context.Context, shopID string) string {
	gen, err := m.cache.Get(ctx, generationKey(shopID))
	if err == nil {
		return string(gen)
	}
	return "0"
}

// List returns one page of the shop's master items.
func (m *MasterItems) List(ctx context.Context, q model.MasterItemQuery) (*model.Page[model.MasterItem], error) {
	if q.ShopID == "" {
		return nil, validationErr("shop_id", "shop is required")
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 || q.PageSize > maxPageSize {
		q.PageSize = defaultPageSize
	}

	key := fmt.Sprintf("masteritems:%s:%s:%d:%d:%s",
		q.ShopID, m.generation(ctx, q.ShopID), q.Page, q.PageSize, q.Search)

	data, err := m.cache.GetOrSet(ctx, key, m.cfg.ListTTL, func() ([]byte, error) {
		page, err := m.catalog.ListMasterItems(ctx, q)
		if err != nil {
			return nil, err
		}
		if page == nil {
			page = &model.Page[model.MasterItem]{Page: q.Page, PageSize: q.PageSize}
		}
		if page.Items == nil {
			page.Items = []model.MasterItem{}
		}
		return json.Marshal(page)
	})
	if err != nil {
		return nil, FromRemote("failed to list master items", err)
	}

	var page model.Page[model.MasterItem]
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, &Error{Kind: KindRemote, Message: "corrupt master item cache entry", Err: err}
	}
	return &page, nil
}

// Create validates and creates a master item for the shop, then invalidates
// the shop's cached lists.
func (m *MasterItems) Create(ctx context.Context, shopID string, in model.CreateMasterItemInput) (*model.MasterItem, error) {
	if err := m.validate.Struct(in); err != nil {
		return nil, fromValidation(err)
	}

	item, err := m.catalog.CreateMasterItem(ctx, shopID, in)
	if err != nil {
		m.logger.WithField("shop_id", shopID).WithError(err).Warn("Master item creation failed")
		return nil, FromRemote("failed to create master item", err)
	}

	if err := m.cache.Set(ctx, generationKey(shopID), []byte(ulid.Make().String()), m.cfg.ListTTL); err != nil {
		m.logger.WithError(err).Warn("Failed to invalidate master item lists")
	}

	m.logger.WithFields(log.Fields{
		"shop_id":        shopID,
		"master_item_id": item.ID,
	}).Info("Master item created")
	return item, nil
}

// Categories returns the category tree, cached.
func (m *MasterItems) Categories(ctx context.Context) ([]model.Category, error) {
	data, err := m.cache.GetOrSet(ctx, categoryTreeKey, m.cfg.CategoryTTL, func() ([]byte, error) {
		tree, err := m.catalog.GetCategoryTree(ctx)
		if err != nil {
			return nil, err
		}
		if tree == nil {
			tree = []model.Category{}
		}
		return json.Marshal(tree)
	})
	if err != nil {
		return nil, FromRemote("failed to load categories", err)
	}

	var tree []model.Category
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, &Error{Kind: KindRemote, Message: "corrupt category cache entry", Err: err}
	}
	return tree, nil
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fromValidation turns the first validator failure into a validation error.
func fromValidation(err error) *Error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return validationErr(fe.Field(), messageForTag(fe.Tag(), fe.Param()))
	}
	return validationErr("", "invalid input")
}

func messageForTag(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + param + " characters"
	case "min":
		return "must contain at least " + param + " entries"
	case "oneof":
		return "must be one of: " + param
	case "url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}
